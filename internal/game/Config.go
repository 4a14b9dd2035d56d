package game

import "time"

const (
	GameTickDuration  = 150 * time.Millisecond
	DefaultGridSize   = 20
	MinGridSize       = 10
	FoodReward        = 10
	InitialSnakeSize  = 5
	HighScoreKey      = "snakeHighScore"
	commandBufferSize = 16
)

// NoFood marks the food slot when the snake covers every cell of the grid.
var NoFood = Cell{X: -1, Y: -1}

var InitialDirection = Up
