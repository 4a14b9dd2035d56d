package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Mshel/neonsnake/internal/game"
	"github.com/charmbracelet/log"
)

const (
	DefaultPath       = "neonsnake.json"
	PrivateKeyPathEnv = "NEONSNAKE_PRIVATE_KEY_PATH"
)

type SSHConfig struct {
	Enabled             bool   `json:"enabled"`
	Host                string `json:"host"`
	Port                int    `json:"port"`
	HostKeyPath         string `json:"hostKeyPath"`
	MaxConnectionsPerIP int    `json:"maxConnectionsPerIp"`
}

type HTTPConfig struct {
	Enabled            bool   `json:"enabled"`
	Addr               string `json:"addr"`
	MaxSessions        int    `json:"maxSessions"`
	IdleTimeoutSeconds int    `json:"idleTimeoutSeconds"`
}

// Config holds every runtime setting. Sessions copy it when they start, so a
// reload only affects games created afterwards.
type Config struct {
	GridSize        int        `json:"gridSize"`
	TickMillis      int        `json:"tickMillis"`
	HighScoreDBPath string     `json:"highScoreDbPath"`
	HighScoreKey    string     `json:"highScoreKey"`
	AutopilotScript string     `json:"autopilotScript"`
	LogLevel        string     `json:"logLevel"`
	SSH             SSHConfig  `json:"ssh"`
	HTTP            HTTPConfig `json:"http"`
}

func Default() Config {
	return Config{
		GridSize:        game.DefaultGridSize,
		TickMillis:      int(game.GameTickDuration / time.Millisecond),
		HighScoreDBPath: "highscores.db",
		HighScoreKey:    game.HighScoreKey,
		LogLevel:        "info",
		SSH: SSHConfig{
			Enabled:             true,
			Host:                "0.0.0.0",
			Port:                6996,
			HostKeyPath:         ".ssh/neonsnake_ed25519",
			MaxConnectionsPerIP: 2,
		},
		HTTP: HTTPConfig{
			Enabled:            true,
			Addr:               ":38870",
			MaxSessions:        64,
			IdleTimeoutSeconds: 600,
		},
	}
}

func (c Config) TickDuration() time.Duration {
	return time.Duration(c.TickMillis) * time.Millisecond
}

func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.HTTP.IdleTimeoutSeconds) * time.Second
}

func (c Config) SSHAddress() string {
	return fmt.Sprintf("%s:%d", c.SSH.Host, c.SSH.Port)
}

func (c Config) Validate() error {
	var errs []error
	if c.GridSize < game.MinGridSize {
		errs = append(errs, fmt.Errorf("gridSize must be at least %d, got %d", game.MinGridSize, c.GridSize))
	}
	if c.TickMillis <= 0 {
		errs = append(errs, fmt.Errorf("tickMillis must be positive, got %d", c.TickMillis))
	}
	if c.HighScoreKey == "" {
		errs = append(errs, errors.New("highScoreKey must not be empty"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("logLevel: %w", err))
	}
	if c.SSH.Enabled {
		if c.SSH.Port <= 0 || c.SSH.Port > 65535 {
			errs = append(errs, fmt.Errorf("ssh.port out of range: %d", c.SSH.Port))
		}
		if c.SSH.MaxConnectionsPerIP <= 0 {
			errs = append(errs, fmt.Errorf("ssh.maxConnectionsPerIp must be positive, got %d", c.SSH.MaxConnectionsPerIP))
		}
	}
	if c.HTTP.Enabled {
		if c.HTTP.Addr == "" {
			errs = append(errs, errors.New("http.addr must not be empty"))
		}
		if c.HTTP.MaxSessions <= 0 {
			errs = append(errs, fmt.Errorf("http.maxSessions must be positive, got %d", c.HTTP.MaxSessions))
		}
		if c.HTTP.IdleTimeoutSeconds <= 0 {
			errs = append(errs, fmt.Errorf("http.idleTimeoutSeconds must be positive, got %d", c.HTTP.IdleTimeoutSeconds))
		}
	}
	return errors.Join(errs...)
}

// ApplyLogLevel sets the level of the default logger. Unknown levels are
// ignored since Validate already rejects them.
func ApplyLogLevel(level string) {
	if parsed, err := log.ParseLevel(level); err == nil {
		log.SetLevel(parsed)
	}
}

// Load reads the config file, writing the defaults first if it does not
// exist yet. Fields absent from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	case err != nil:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if keyPath := os.Getenv(PrivateKeyPathEnv); keyPath != "" {
		cfg.SSH.HostKeyPath = keyPath
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir %s: %w", dir, err)
		}
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
