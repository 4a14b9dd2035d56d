package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Mshel/neonsnake/internal/autopilot"
	"github.com/Mshel/neonsnake/internal/config"
	"github.com/Mshel/neonsnake/internal/game"
	"github.com/Mshel/neonsnake/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

func main() {
	os.Exit(run())
}

// run owns every deferred cleanup so they complete before the process exits.
func run() int {
	configPath := flag.String("config", config.DefaultPath, "path to the JSON config file")
	logPath := flag.String("log", "neonsnake.log", "file that receives logs while the game owns the terminal")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("error %v\n", err)
		return 1
	}

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Printf("error %v\n", err)
		return 1
	}
	defer logFile.Close()
	log.SetOutput(logFile)
	config.ApplyLogLevel(cfg.LogLevel)

	highScores, closeHighScores := game.OpenHighScores(cfg.HighScoreDBPath)
	defer closeHighScores()

	opts := []game.Option{
		game.WithHighScoreKey(cfg.HighScoreKey),
		game.WithTickDuration(cfg.TickDuration()),
		game.WithNotifier(game.LogNotifier{}),
	}
	pilot, err := autopilot.FromScript(cfg.AutopilotScript)
	if err != nil {
		log.Warn("Autopilot unavailable", "error", err)
	} else {
		defer pilot.Close()
		opts = append(opts, game.WithPilot(pilot))
	}

	gameManager := game.NewGameManager(game.NewEngine(game.WithGridSize(cfg.GridSize)), highScores, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	go gameManager.Run(ctx)

	p := tea.NewProgram(ui.NewControllerModel(gameManager, highScores, "", 0, 0), tea.WithAltScreen())
	_, err = p.Run()

	cancel()
	<-gameManager.Done()

	if err != nil {
		fmt.Printf("error %v\n", err)
		return 1
	}
	return 0
}
