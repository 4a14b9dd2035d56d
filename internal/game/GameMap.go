package game

import (
	"fmt"
	"slices"
)

type Status int

const (
	StatusIdle Status = iota
	StatusPlaying
	StatusPaused
	StatusOver
)

var statusNames = map[Status]string{
	StatusIdle:    "idle",
	StatusPlaying: "playing",
	StatusPaused:  "paused",
	StatusOver:    "over",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

type CellKind int

const (
	CellEmpty CellKind = iota
	CellBody
	CellHead
	CellFood
)

// State is a read-only snapshot of a game, safe to hand to render surfaces.
type State struct {
	GridSize  int       `json:"gridSize"`
	Snake     []Cell    `json:"snake"`
	Food      Cell      `json:"food"`
	Direction Direction `json:"direction"`
	Score     int       `json:"score"`
	HighScore int       `json:"highScore"`
	Status    Status    `json:"status"`
	IsPlaying bool      `json:"isPlaying"`
	IsOver    bool      `json:"isOver"`
	Autopilot bool      `json:"autopilot"`
}

func (s State) Head() Cell {
	if len(s.Snake) == 0 {
		return NoFood
	}
	return s.Snake[0]
}

func (s State) Occupied(c Cell) bool {
	return slices.Contains(s.Snake, c)
}

// Grid classifies every cell, indexed [row][col].
func (s State) Grid() [][]CellKind {
	grid := make([][]CellKind, s.GridSize)
	for row := range grid {
		grid[row] = make([]CellKind, s.GridSize)
	}

	inGrid := func(c Cell) bool {
		return c.X >= 0 && c.Y >= 0 && c.X < s.GridSize && c.Y < s.GridSize
	}

	if inGrid(s.Food) {
		grid[s.Food.Y][s.Food.X] = CellFood
	}
	for i, c := range s.Snake {
		if !inGrid(c) {
			continue
		}
		if i == 0 {
			grid[c.Y][c.X] = CellHead
		} else {
			grid[c.Y][c.X] = CellBody
		}
	}

	return grid
}
