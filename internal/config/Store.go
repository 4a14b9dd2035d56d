package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Store holds the current config and swaps it when the file changes.
type Store struct {
	path string

	mu      sync.RWMutex
	current Config
}

func NewStore(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, current: cfg}, nil
}

func (s *Store) Current() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload re-reads the file. An invalid file leaves the current config alone.
func (s *Store) Reload() (Config, error) {
	cfg, err := Load(s.path)
	if err != nil {
		return s.Current(), err
	}

	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()
	return cfg, nil
}

// Watch reloads the config on every write until ctx is done. The parent
// directory is watched because editors often replace files by rename.
func (s *Store) Watch(ctx context.Context, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(s.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	log.Debug("Watching config for changes.", "path", target)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := s.Reload()
			if err != nil {
				log.Warn("Config reload rejected, keeping previous values.", "path", target, "error", err)
				continue
			}
			log.Info("Config reloaded.", "path", target, "gridSize", cfg.GridSize, "tickMillis", cfg.TickMillis)
			if onChange != nil {
				onChange(cfg)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("Config watcher error.", "error", err)
		}
	}
}
