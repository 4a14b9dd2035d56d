package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Mshel/neonsnake/internal/game"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const leaderboardLimit = 10

var (
	gameOverTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("9"))

	newRecordTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color(neonYellow))

	gameOverBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.ThickBorder()).
				BorderForeground(lipgloss.Color(neonPink)).
				Padding(0, 2).
				Align(lipgloss.Center)

	leaderboardHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("236")).
				Padding(0, 1).
				Align(lipgloss.Center)

	leaderboardRowStyle = lipgloss.NewStyle().
				Padding(0, 1)

	leaderboardBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), false, false, true, false).
				BorderForeground(lipgloss.Color("8"))
)

// RenderGameOver draws the banner shown over the board once a game ends.
// outcome may be nil when the view joined after the game finished.
func RenderGameOver(state game.State, outcome *game.Outcome) string {
	title := gameOverTitleStyle.Render("G A M E   O V E R")
	if outcome != nil && outcome.NewRecord {
		title = newRecordTitleStyle.Render("N E W   R E C O R D")
	}

	lines := []string{
		title,
		"",
		fmt.Sprintf("Final score: %d", state.Score),
		fmt.Sprintf("Best: %d", state.HighScore),
		"",
		lipgloss.NewStyle().Faint(true).Render("enter: play again"),
	}
	return gameOverBoxStyle.Render(strings.Join(lines, "\n"))
}

type scoresLoadedMsg struct {
	scores []game.Score
	err    error
}

type LeaderboardModel struct {
	source  Leaderboard
	scores  []game.Score
	err     error
	loading bool

	ScreenWidth  int
	ScreenHeight int
}

func NewLeaderboardModel(source Leaderboard, screenWidth int, screenHeight int) LeaderboardModel {
	return LeaderboardModel{
		source:       source,
		loading:      source != nil,
		ScreenWidth:  screenWidth,
		ScreenHeight: screenHeight,
	}
}

func (m LeaderboardModel) Init() tea.Cmd {
	if m.source == nil {
		return nil
	}
	source := m.source
	return func() tea.Msg {
		scores, err := source.TopHighScores(leaderboardLimit)
		return scoresLoadedMsg{scores: scores, err: err}
	}
}

func (m LeaderboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ScreenWidth, m.ScreenHeight = msg.Width, msg.Height
	case scoresLoadedMsg:
		m.loading = false
		m.scores, m.err = msg.scores, msg.err
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "enter":
			return m, func() tea.Msg { return QuitLeaderboardMsg{} }
		}
	}
	return m, nil
}

func (m LeaderboardModel) View() string {
	var tableContent strings.Builder

	nameWidth := 20
	scoreWidth := 8

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		leaderboardHeaderStyle.Width(4).Render("#"),
		leaderboardHeaderStyle.Width(nameWidth).Render("Player"),
		leaderboardHeaderStyle.Width(scoreWidth).Render("Score"),
	)
	tableContent.WriteString(header + "\n")

	switch {
	case m.loading:
		tableContent.WriteString(leaderboardRowStyle.Render("Loading...") + "\n")
	case m.err != nil:
		tableContent.WriteString(leaderboardRowStyle.Render("Could not load scores: "+m.err.Error()) + "\n")
	case len(m.scores) == 0:
		tableContent.WriteString(leaderboardRowStyle.Render("No scores yet") + "\n")
	}

	for i, score := range m.scores {
		nameStyle := leaderboardRowStyle
		if i == 0 {
			nameStyle = nameStyle.Foreground(lipgloss.Color(neonYellow))
		}
		row := lipgloss.JoinHorizontal(lipgloss.Top,
			leaderboardRowStyle.Width(4).Render(strconv.Itoa(i+1)),
			nameStyle.Width(nameWidth).Render(displayName(score.Key)),
			leaderboardRowStyle.Width(scoreWidth).Render(strconv.Itoa(score.Score)),
		)
		tableContent.WriteString(leaderboardBorderStyle.Render(row) + "\n")
	}

	title := lipgloss.NewStyle().Bold(true).Padding(1, 0).Foreground(lipgloss.Color(neonCyan)).Render("HIGH SCORES")
	instruction := lipgloss.NewStyle().Faint(true).Margin(1, 0).Render("Press ESC or ENTER to go back.")

	finalContent := lipgloss.JoinVertical(lipgloss.Center,
		title,
		tableContent.String(),
		instruction,
	)

	return lipgloss.Place(m.ScreenWidth, m.ScreenHeight,
		lipgloss.Center, lipgloss.Center,
		lipgloss.NewStyle().Border(lipgloss.ThickBorder()).Render(finalContent),
	)
}

// displayName turns a scoped high score key such as
// "snakeHighScore:ssh:alice" into "alice (ssh)".
func displayName(key string) string {
	parts := strings.Split(key, ":")
	if len(parts) < 3 {
		return "local"
	}
	return fmt.Sprintf("%s (%s)", strings.Join(parts[2:], ":"), parts[1])
}
