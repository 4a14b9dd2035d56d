package web

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Mshel/neonsnake/internal/game"
	"github.com/Mshel/neonsnake/internal/metrics"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const reapInterval = 30 * time.Second

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many sessions")
)

// Settings are read each time a session is created, so config reloads
// apply to new games only.
type Settings struct {
	GridSize     int
	TickDuration time.Duration
	HighScoreKey string
	MaxSessions  int
	IdleTimeout  time.Duration
}

// PilotCloser is an autopilot that owns resources released when its
// session ends.
type PilotCloser interface {
	game.Pilot
	Close()
}

type Session struct {
	ID        string
	Player    string
	CreatedAt time.Time
	Manager   *game.GameManager

	cancel     context.CancelFunc
	lastActive atomic.Int64
	streams    atomic.Int32
}

// Touch marks the session as in use.
func (s *Session) Touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastActive.Load()))
}

// Registry owns every browser game session, each with its own game loop.
type Registry struct {
	ctx        context.Context
	highScores game.HighScoreStore
	settings   func() Settings
	newPilot   func() (PilotCloser, error)
	newTicker  game.TickerFactory
	now        func() time.Time
	recorder   *metrics.Recorder
	logger     *log.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

type RegistryOption func(*Registry)

func WithSettings(f func() Settings) RegistryOption {
	return func(r *Registry) { r.settings = f }
}

func WithPilotFactory(f func() (PilotCloser, error)) RegistryOption {
	return func(r *Registry) { r.newPilot = f }
}

func WithRecorder(rec *metrics.Recorder) RegistryOption {
	return func(r *Registry) { r.recorder = rec }
}

func WithTickerFactory(f game.TickerFactory) RegistryOption {
	return func(r *Registry) { r.newTicker = f }
}

func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func WithLogger(l *log.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates a registry whose game loops stop when ctx is done.
func NewRegistry(ctx context.Context, highScores game.HighScoreStore, opts ...RegistryOption) *Registry {
	if highScores == nil {
		highScores = game.NewMemoryHighScoreStore()
	}
	r := &Registry{
		ctx:        ctx,
		highScores: highScores,
		settings: func() Settings {
			return Settings{
				GridSize:     game.DefaultGridSize,
				TickDuration: game.GameTickDuration,
				HighScoreKey: game.HighScoreKey,
				MaxSessions:  64,
				IdleTimeout:  10 * time.Minute,
			}
		},
		now:      time.Now,
		logger:   log.Default(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create starts a new game loop for player. An empty player name gets a
// generated one.
func (r *Registry) Create(player string) (*Session, error) {
	settings := r.settings()
	if r.Len() >= settings.MaxSessions {
		return nil, ErrTooManySessions
	}

	id := uuid.NewString()
	if player == "" {
		player = "Player_" + id[:8]
	}
	logger := r.logger.With("session", id)

	opts := []game.Option{
		game.WithID(id),
		game.WithHighScoreKey(fmt.Sprintf("%s:web:%s", settings.HighScoreKey, player)),
		game.WithTickDuration(settings.TickDuration),
		game.WithNotifier(game.LogNotifier{Logger: logger}),
		game.WithLogger(logger),
	}
	if r.recorder != nil {
		opts = append(opts, game.WithObserver(r.recorder))
	}
	if r.newTicker != nil {
		opts = append(opts, game.WithTickerFactory(r.newTicker))
	}

	var pilot PilotCloser
	if r.newPilot != nil {
		p, err := r.newPilot()
		if err != nil {
			logger.Warn("Autopilot unavailable for session.", "error", err)
		} else {
			pilot = p
			opts = append(opts, game.WithPilot(p))
		}
	}

	engine := game.NewEngine(game.WithGridSize(settings.GridSize))
	manager := game.NewGameManager(engine, r.highScores, opts...)

	ctx, cancel := context.WithCancel(r.ctx)
	session := &Session{
		ID:        id,
		Player:    player,
		CreatedAt: time.Now(),
		Manager:   manager,
		cancel:    cancel,
	}
	session.Touch(r.now())

	r.mu.Lock()
	if len(r.sessions) >= settings.MaxSessions {
		r.mu.Unlock()
		cancel()
		if pilot != nil {
			pilot.Close()
		}
		return nil, ErrTooManySessions
	}
	r.sessions[id] = session
	r.mu.Unlock()

	go func() {
		if err := manager.Run(ctx); err != nil {
			logger.Error("Game loop failed.", "error", err)
		}
		if pilot != nil {
			pilot.Close()
		}
	}()

	if r.recorder != nil {
		r.recorder.SessionOpened()
	}
	logger.Info("Session created.", "player", player)
	return session, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return session, nil
}

// Close stops the session's loop and waits for it to exit.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	session, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	session.cancel()
	<-session.Manager.Done()

	if r.recorder != nil {
		r.recorder.SessionClosed()
	}
	r.logger.Info("Session closed.", "session", id)
	return nil
}

func (r *Registry) CloseAll() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		_ = r.Close(id)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Reap closes sessions idle for longer than the configured timeout. A
// session with a connected stream is never idle.
func (r *Registry) Reap() int {
	timeout := r.settings().IdleTimeout
	now := r.now()

	r.mu.RLock()
	var idle []string
	for id, session := range r.sessions {
		if session.streams.Load() == 0 && session.idleSince(now) > timeout {
			idle = append(idle, id)
		}
	}
	r.mu.RUnlock()

	reaped := 0
	for _, id := range idle {
		if err := r.Close(id); err == nil {
			reaped++
			r.logger.Info("Idle session reaped.", "session", id, "timeout", timeout)
		}
	}
	return reaped
}

// RunReaper calls Reap periodically until ctx is done.
func (r *Registry) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reap()
		}
	}
}
