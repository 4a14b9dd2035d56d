package ui

import (
	"github.com/Mshel/neonsnake/internal/game"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

// GameController is the part of game.GameManager the terminal UI drives.
type GameController interface {
	Start() error
	TogglePause() error
	SetDirection(d game.Direction) error
	SetAutopilot(enabled bool) error
	Snapshot() game.State
	Subscribe() (<-chan game.Update, func())
}

type Leaderboard interface {
	TopHighScores(limit int) ([]game.Score, error)
}

type Screen int

const (
	IntroScreen Screen = iota
	GameScreen
	LeaderboardScreen
)

type IntroSubmitMsg int

const (
	IntroPlay IntroSubmitMsg = iota
	IntroAutopilot
	IntroLeaderboard
)

type QuitLeaderboardMsg struct{}

type commandErrMsg struct{ err error }

type ControllerModel struct {
	CurrentScreen Screen
	controller    GameController
	leaderboard   Leaderboard
	playerName    string

	IntroModel       tea.Model
	GameModel        tea.Model
	LeaderboardModel tea.Model

	ScreenWidth  int
	ScreenHeight int
}

func NewControllerModel(controller GameController, leaderboard Leaderboard, playerName string, screenWidth int, screenHeight int) ControllerModel {
	return ControllerModel{
		CurrentScreen: IntroScreen,
		controller:    controller,
		leaderboard:   leaderboard,
		playerName:    playerName,

		IntroModel: NewIntroModel(playerName, screenWidth, screenHeight),

		ScreenWidth:  screenWidth,
		ScreenHeight: screenHeight,
	}
}

func (m ControllerModel) Init() tea.Cmd {
	return m.IntroModel.Init()
}

func (m ControllerModel) View() string {
	switch m.CurrentScreen {
	case IntroScreen:
		return m.IntroModel.View()
	case GameScreen:
		if m.GameModel != nil {
			return m.GameModel.View()
		}
		return "Game Loading..."
	case LeaderboardScreen:
		if m.LeaderboardModel != nil {
			return m.LeaderboardModel.View()
		}
		return "Loading scores..."
	default:
		return "Unknown Screen"
	}
}

func (m ControllerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			if gameView, ok := m.GameModel.(GameViewModel); ok {
				gameView.Close()
			}
			return m, tea.Quit
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ScreenWidth, m.ScreenHeight = msg.Width, msg.Height
		var cmds []tea.Cmd
		m.IntroModel, cmd = m.IntroModel.Update(msg)
		cmds = append(cmds, cmd)
		if m.GameModel != nil {
			m.GameModel, cmd = m.GameModel.Update(msg)
			cmds = append(cmds, cmd)
		}
		if m.LeaderboardModel != nil {
			m.LeaderboardModel, cmd = m.LeaderboardModel.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case IntroSubmitMsg:
		switch msg {
		case IntroPlay, IntroAutopilot:
			m.CurrentScreen = GameScreen
			var cmds []tea.Cmd
			if m.GameModel == nil {
				m.GameModel = NewGameViewModel(m.controller, m.ScreenWidth, m.ScreenHeight)
				cmds = append(cmds, m.GameModel.Init())
			}
			autopilot := msg == IntroAutopilot
			cmds = append(cmds, tea.Sequence(
				sendCommand(func() error { return m.controller.SetAutopilot(autopilot) }),
				sendCommand(m.controller.Start),
			))
			return m, tea.Batch(cmds...)
		case IntroLeaderboard:
			m.CurrentScreen = LeaderboardScreen
			m.LeaderboardModel = NewLeaderboardModel(m.leaderboard, m.ScreenWidth, m.ScreenHeight)
			return m, m.LeaderboardModel.Init()
		}
		return m, nil

	case QuitLeaderboardMsg:
		m.CurrentScreen = IntroScreen
		return m, m.IntroModel.Init()
	}

	// Game updates keep flowing while another screen is shown so the
	// subscription never stalls.
	if m.GameModel != nil && (m.CurrentScreen == GameScreen || isGameMsg(msg)) {
		m.GameModel, cmd = m.GameModel.Update(msg)
		return m, cmd
	}

	switch m.CurrentScreen {
	case IntroScreen:
		m.IntroModel, cmd = m.IntroModel.Update(msg)
	case LeaderboardScreen:
		if m.LeaderboardModel != nil {
			m.LeaderboardModel, cmd = m.LeaderboardModel.Update(msg)
		}
	}
	return m, cmd
}

func isGameMsg(msg tea.Msg) bool {
	switch msg.(type) {
	case updateMsg, updatesClosedMsg, clearToastMsg, commandErrMsg:
		return true
	}
	return false
}

// off the update loop
func sendCommand(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			log.Warn("Game command failed.", "error", err)
			return commandErrMsg{err: err}
		}
		return nil
	}
}
