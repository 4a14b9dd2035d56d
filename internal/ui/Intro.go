package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var introButtons = []string{"Play", "Watch Autopilot", "High Scores"}

// IntroModel holds the state for the main menu.
type IntroModel struct {
	selected   int
	playerName string
	width      int
	height     int
}

func NewIntroModel(playerName string, w, h int) IntroModel {
	return IntroModel{playerName: playerName, width: w, height: h}
}

func (m IntroModel) Init() tea.Cmd { return nil }

func (m IntroModel) Selected() IntroSubmitMsg { return IntroSubmitMsg(m.selected) }

func (m IntroModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "left", "h", "shift+tab":
			m.selected = (m.selected + len(introButtons) - 1) % len(introButtons)
		case "right", "l", "tab":
			m.selected = (m.selected + 1) % len(introButtons)
		case "enter":
			selected := IntroSubmitMsg(m.selected)
			return m, func() tea.Msg { return selected }
		}
	}
	return m, nil
}

var neonSnakeAscii = `
 ███╗   ██╗███████╗ ██████╗ ███╗   ██╗    ███████╗███╗   ██╗ █████╗ ██╗  ██╗███████╗
 ████╗  ██║██╔════╝██╔═══██╗████╗  ██║    ██╔════╝████╗  ██║██╔══██╗██║ ██╔╝██╔════╝
 ██╔██╗ ██║█████╗  ██║   ██║██╔██╗ ██║    ███████╗██╔██╗ ██║███████║█████╔╝ █████╗  
 ██║╚██╗██║██╔══╝  ██║   ██║██║╚██╗██║    ╚════██║██║╚██╗██║██╔══██║██╔═██╗ ██╔══╝  
 ██║ ╚████║███████╗╚██████╔╝██║ ╚████║    ███████║██║ ╚████║██║  ██║██║  ██╗███████╗
 ╚═╝  ╚═══╝╚══════╝ ╚═════╝ ╚═╝  ╚═══╝    ╚══════╝╚═╝  ╚═══╝╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝
`

var (
	asciiStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(neonPink))

	welcomeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(neonCyan)).
			Italic(true)

	introButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("250")).
				Padding(0, 3).
				Margin(1, 2).
				Border(lipgloss.RoundedBorder())

	introSelectedButtonStyle = introButtonStyle.
					Background(lipgloss.Color(neonCyan)).
					Foreground(lipgloss.Color("0"))
)

func (m IntroModel) View() string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(asciiStyle.Render(neonSnakeAscii))
	sb.WriteString("\n")
	if m.playerName != "" {
		sb.WriteString(welcomeStyle.Render("Welcome, " + m.playerName))
		sb.WriteString("\n")
	}

	buttons := make([]string, len(introButtons))
	for i, label := range introButtons {
		if i == m.selected {
			buttons[i] = introSelectedButtonStyle.Render(label)
		} else {
			buttons[i] = introButtonStyle.Render(label)
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		sb.String(),
		lipgloss.JoinHorizontal(lipgloss.Center, buttons...),
	)

	return lipgloss.Place(m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
}
