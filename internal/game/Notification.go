package game

import (
	"fmt"

	"github.com/charmbracelet/log"
)

type NotificationKind int

const (
	NotificationGameStarted NotificationKind = iota
	NotificationNewHighScore
	NotificationGameOver
)

func (k NotificationKind) String() string {
	switch k {
	case NotificationGameStarted:
		return "game_started"
	case NotificationNewHighScore:
		return "new_high_score"
	case NotificationGameOver:
		return "game_over"
	}
	return "unknown"
}

func (k NotificationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *NotificationKind) UnmarshalText(text []byte) error {
	for _, kind := range []NotificationKind{NotificationGameStarted, NotificationNewHighScore, NotificationGameOver} {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown notification kind %q", text)
}

// Notification is a fire-and-forget message for toast-style surfaces.
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
}

// Outcome is the result of settling a finished game against the stored best.
type Outcome struct {
	Score             int  `json:"score"`
	PreviousHighScore int  `json:"previousHighScore"`
	NewRecord         bool `json:"newRecord"`
}

func (o Outcome) Notification() Notification {
	if o.NewRecord {
		return Notification{
			Kind:        NotificationNewHighScore,
			Title:       "New High Score!",
			Description: fmt.Sprintf("Amazing! You scored %d points!", o.Score),
		}
	}
	return Notification{
		Kind:        NotificationGameOver,
		Title:       "Game Over",
		Description: fmt.Sprintf("Final score: %d", o.Score),
	}
}

func gameStartedNotification() Notification {
	return Notification{
		Kind:        NotificationGameStarted,
		Title:       "Game Started!",
		Description: "Use arrow keys to control the snake",
	}
}

type Notifier interface {
	Notify(gameID string, n Notification)
}

type NotifierFunc func(gameID string, n Notification)

func (f NotifierFunc) Notify(gameID string, n Notification) { f(gameID, n) }

// LogNotifier writes every notification to the structured logger.
type LogNotifier struct {
	Logger *log.Logger
}

func (l LogNotifier) Notify(gameID string, n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Info(n.Title, "game", gameID, "kind", n.Kind, "description", n.Description)
}
