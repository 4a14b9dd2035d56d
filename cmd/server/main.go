package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mshel/neonsnake/internal/autopilot"
	"github.com/Mshel/neonsnake/internal/config"
	"github.com/Mshel/neonsnake/internal/game"
	"github.com/Mshel/neonsnake/internal/metrics"
	"github.com/Mshel/neonsnake/internal/ui"
	"github.com/Mshel/neonsnake/internal/web"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 30 * time.Second

type server struct {
	store      *config.Store
	highScores game.RankedHighScoreStore
	recorder   *metrics.Recorder
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath, "path to the JSON config file")
	flag.Parse()

	store, err := config.NewStore(*configPath)
	if err != nil {
		log.Error("Failed to load config", "path", *configPath, "error", err)
		return 1
	}
	cfg := store.Current()
	config.ApplyLogLevel(cfg.LogLevel)

	highScores, closeHighScores := game.OpenHighScores(cfg.HighScoreDBPath)
	defer closeHighScores()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := &server{
		store:      store,
		highScores: highScores,
		recorder:   metrics.NewRecorder(promRegistry),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		err := store.Watch(ctx, func(c config.Config) { config.ApplyLogLevel(c.LogLevel) })
		if err != nil {
			log.Error("Config watcher stopped", "error", err)
		}
	}()

	serverErrors := make(chan error, 2)

	var sshServer *ssh.Server
	if cfg.SSH.Enabled {
		sshServer, err = srv.newSSHServer(cfg)
		if err != nil {
			log.Error("Failed to create ssh server", "error", err)
			return 1
		}
		log.Info("Starting SSH server", "address", cfg.SSHAddress())
		go func() {
			if err := sshServer.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
				serverErrors <- fmt.Errorf("ssh server: %w", err)
			}
		}()
	}

	var httpServer *http.Server
	var sessions *web.Registry
	if cfg.HTTP.Enabled {
		if log.GetLevel() > log.DebugLevel {
			gin.SetMode(gin.ReleaseMode)
		}
		sessions = srv.newSessionRegistry(ctx)
		go sessions.RunReaper(ctx)
		httpServer = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           web.NewRouter(sessions, promRegistry, log.Default()),
			ReadHeaderTimeout: 10 * time.Second,
		}
		log.Info("Starting HTTP server", "address", cfg.HTTP.Addr)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrors <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	if sshServer == nil && httpServer == nil {
		log.Warn("Both ssh and http are disabled, nothing to serve")
		return 0
	}

	code := 0
	select {
	case <-ctx.Done():
	case err := <-serverErrors:
		log.Error("Server failed", "error", err)
		code = 1
	}

	log.Info("Stopping servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sshServer != nil {
		if err := sshServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			log.Error("Could not stop ssh server", "error", err)
		}
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Could not stop http server", "error", err)
		}
		sessions.CloseAll()
	}
	return code
}

func (s *server) newSSHServer(cfg config.Config) (*ssh.Server, error) {
	limiter := newConnectionLimiter(func() int {
		return s.store.Current().SSH.MaxConnectionsPerIP
	})

	return wish.NewServer(
		wish.WithAddress(cfg.SSHAddress()),
		wish.WithHostKeyPath(cfg.SSH.HostKeyPath),
		wish.WithMiddleware(
			bubbletea.Middleware(s.viewHandler),
			logging.Middleware(),
			activeterm.Middleware(),
			limiter.Middleware,
		),
	)
}

func (s *server) newSessionRegistry(ctx context.Context) *web.Registry {
	return web.NewRegistry(ctx, s.highScores,
		web.WithRecorder(s.recorder),
		web.WithLogger(log.Default()),
		web.WithSettings(func() web.Settings {
			cfg := s.store.Current()
			return web.Settings{
				GridSize:     cfg.GridSize,
				TickDuration: cfg.TickDuration(),
				HighScoreKey: cfg.HighScoreKey,
				MaxSessions:  cfg.HTTP.MaxSessions,
				IdleTimeout:  cfg.IdleTimeout(),
			}
		}),
		web.WithPilotFactory(func() (web.PilotCloser, error) {
			pilot, err := autopilot.FromScript(s.store.Current().AutopilotScript)
			if err != nil {
				return nil, err
			}
			return pilot, nil
		}),
	)
}

// viewHandler gives every SSH session its own game loop, stopped when the
// session's context ends.
func (s *server) viewHandler(sshSession ssh.Session) (tea.Model, []tea.ProgramOption) {
	pty, _, _ := sshSession.Pty()
	cfg := s.store.Current()
	user := sshSession.User()
	id := uuid.NewString()
	logger := log.With("session", id, "user", user)

	opts := []game.Option{
		game.WithID(id),
		game.WithHighScoreKey(fmt.Sprintf("%s:ssh:%s", cfg.HighScoreKey, user)),
		game.WithTickDuration(cfg.TickDuration()),
		game.WithNotifier(game.LogNotifier{Logger: logger}),
		game.WithObserver(s.recorder),
		game.WithLogger(logger),
	}

	pilot, err := autopilot.FromScript(cfg.AutopilotScript)
	if err != nil {
		logger.Warn("Autopilot unavailable for session", "error", err)
	} else {
		opts = append(opts, game.WithPilot(pilot))
	}

	gameManager := game.NewGameManager(game.NewEngine(game.WithGridSize(cfg.GridSize)), s.highScores, opts...)
	s.recorder.SessionOpened()
	go func() {
		defer s.recorder.SessionClosed()
		if err := gameManager.Run(sshSession.Context()); err != nil {
			logger.Error("Game loop failed", "error", err)
		}
		if pilot != nil {
			pilot.Close()
		}
	}()

	controllerModel := ui.NewControllerModel(gameManager, s.highScores, user, pty.Window.Width, pty.Window.Height)
	return controllerModel, []tea.ProgramOption{tea.WithAltScreen()}
}
