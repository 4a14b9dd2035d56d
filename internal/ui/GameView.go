package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mshel/neonsnake/internal/game"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const (
	neonPink   = "#ff4fd8"
	neonCyan   = "#21f0c3"
	neonYellow = "#ffe14f"
	neonPurple = "#8a5cff"

	toastDuration = 3 * time.Second
)

var (
	mapViewStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color(neonPurple))

	statusPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("8")).
				Padding(1, 2).
				Width(28)

	toastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(neonYellow)).
			Padding(0, 2)

	toastTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(neonYellow))
	labelStyle      = lipgloss.NewStyle().Bold(true)

	headStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color(neonPink)).Bold(true)
	bodyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(neonPink))
	foodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(neonCyan)).Bold(true)
	emptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))

	headRunes = map[game.Direction]string{
		game.Up:    "▲",
		game.Down:  "▼",
		game.Left:  "◀",
		game.Right: "▶",
	}
)

type updateMsg game.Update

type updatesClosedMsg struct{}

type clearToastMsg struct{ id int }

// GameViewModel never mutates game state itself.
type GameViewModel struct {
	controller  GameController
	updates     <-chan game.Update
	unsubscribe func()

	state   game.State
	outcome *game.Outcome
	toast   *game.Notification
	toastID int
	stopped bool

	keys KeyMap
	help help.Model

	ScreenWidth  int
	ScreenHeight int
}

func NewGameViewModel(controller GameController, screenWidth int, screenHeight int) GameViewModel {
	updates, unsubscribe := controller.Subscribe()
	h := help.New()
	h.Width = screenWidth
	return GameViewModel{
		controller:   controller,
		updates:      updates,
		unsubscribe:  unsubscribe,
		state:        controller.Snapshot(),
		keys:         DefaultKeyMap(),
		help:         h,
		ScreenWidth:  screenWidth,
		ScreenHeight: screenHeight,
	}
}

func (m GameViewModel) Init() tea.Cmd {
	return waitForUpdate(m.updates)
}

// Close drops the subscription.
func (m GameViewModel) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m GameViewModel) State() game.State { return m.state }

func (m GameViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ScreenWidth, m.ScreenHeight = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case updateMsg:
		m.state = msg.State
		cmds := []tea.Cmd{waitForUpdate(m.updates)}
		if msg.Outcome != nil {
			outcome := *msg.Outcome
			m.outcome = &outcome
		} else if !m.state.IsOver {
			m.outcome = nil
		}
		if msg.Notification != nil {
			n := *msg.Notification
			m.toast = &n
			m.toastID++
			cmds = append(cmds, clearToastAfter(m.toastID))
		}
		return m, tea.Batch(cmds...)

	case updatesClosedMsg:
		m.stopped = true
		return m, nil

	case clearToastMsg:
		if msg.id == m.toastID {
			m.toast = nil
		}
		return m, nil

	case commandErrMsg:
		if errors.Is(msg.err, game.ErrManagerStopped) {
			m.stopped = true
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m GameViewModel) handleKey(msg tea.KeyMsg) (GameViewModel, tea.Cmd) {
	if m.stopped {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up, m.keys.Down, m.keys.Left, m.keys.Right):
		dir, ok := game.ParseDirection(msg.String())
		if !ok {
			return m, nil
		}
		return m.applyCommand(m.controller.SetDirection(dir))

	case key.Matches(msg, m.keys.Pause):
		return m.applyCommand(m.controller.TogglePause())

	case key.Matches(msg, m.keys.Start):
		if m.state.Status == game.StatusPlaying {
			return m, nil
		}
		return m.applyCommand(m.controller.Start())

	case key.Matches(msg, m.keys.Autopilot):
		return m.applyCommand(m.controller.SetAutopilot(!m.state.Autopilot))

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// Key presses reach the controller from Update itself, in the order they
// were typed.
func (m GameViewModel) applyCommand(err error) (GameViewModel, tea.Cmd) {
	if err == nil {
		return m, nil
	}
	log.Warn("Game command failed.", "error", err)
	if errors.Is(err, game.ErrManagerStopped) {
		m.stopped = true
	}
	return m, nil
}

func (m GameViewModel) View() string {
	if m.stopped {
		return lipgloss.Place(m.ScreenWidth, m.ScreenHeight, lipgloss.Center, lipgloss.Center,
			"Session ended. Press q to quit.")
	}

	boardWidth := m.state.GridSize * 2
	board := renderBoard(m.state)
	if m.state.IsOver {
		board = lipgloss.Place(boardWidth, m.state.GridSize, lipgloss.Center, lipgloss.Center,
			RenderGameOver(m.state, m.outcome))
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		mapViewStyle.Render(board),
		statusPanelStyle.Render(m.renderStatusPanel()),
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		m.renderToast(),
		body,
		m.help.View(m.keys),
	)

	return lipgloss.Place(m.ScreenWidth, m.ScreenHeight, lipgloss.Center, lipgloss.Center, content)
}

func renderBoard(state game.State) string {
	grid := state.Grid()
	rows := make([]string, len(grid))

	head, ok := headRunes[state.Direction]
	if !ok {
		head = "●"
	}

	for r, row := range grid {
		var sb strings.Builder
		for _, kind := range row {
			switch kind {
			case game.CellHead:
				sb.WriteString(headStyle.Render(head + " "))
			case game.CellBody:
				sb.WriteString(bodyStyle.Render("██"))
			case game.CellFood:
				sb.WriteString(foodStyle.Render("◆ "))
			default:
				sb.WriteString(emptyStyle.Render("· "))
			}
		}
		rows[r] = sb.String()
	}
	return strings.Join(rows, "\n")
}

func (m GameViewModel) renderStatusPanel() string {
	var sb strings.Builder

	sb.WriteString(labelStyle.Render("--- Neon Snake ---") + "\n\n")
	sb.WriteString(fmt.Sprintf("Score:      %d\n", m.state.Score))
	sb.WriteString(fmt.Sprintf("High score: %d\n", m.state.HighScore))
	sb.WriteString(fmt.Sprintf("Length:     %d\n", len(m.state.Snake)))
	sb.WriteString(fmt.Sprintf("Heading:    %s\n", headRunes[m.state.Direction]))

	autopilot := "off"
	if m.state.Autopilot {
		autopilot = "on"
	}
	sb.WriteString(fmt.Sprintf("Autopilot:  %s\n\n", autopilot))

	sb.WriteString(labelStyle.Render(statusLine(m.state.Status)))
	return sb.String()
}

func statusLine(status game.Status) string {
	switch status {
	case game.StatusIdle:
		return "Press enter to start"
	case game.StatusPaused:
		return "Paused. Press p to resume"
	case game.StatusOver:
		return "Game over. Enter plays again"
	default:
		return "Playing"
	}
}

func (m GameViewModel) renderToast() string {
	if m.toast == nil {
		return ""
	}
	return toastStyle.Render(toastTitleStyle.Render(m.toast.Title) + "\n" + m.toast.Description)
}

func waitForUpdate(updates <-chan game.Update) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return updatesClosedMsg{}
		}
		return updateMsg(update)
	}
}

func clearToastAfter(id int) tea.Cmd {
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return clearToastMsg{id: id}
	})
}
