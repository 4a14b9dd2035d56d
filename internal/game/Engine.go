package game

import (
	"math/rand"
	"slices"
	"time"
)

// RandomSource is the subset of *rand.Rand used for food placement.
type RandomSource interface {
	Intn(n int) int
}

type TickEvent int

const (
	EventNone TickEvent = iota
	EventMoved
	EventAte
	EventWallCollision
	EventSelfCollision
)

var tickEventNames = [...]string{"none", "moved", "ate", "wall_collision", "self_collision"}

func (e TickEvent) String() string {
	if int(e) < 0 || int(e) >= len(tickEventNames) {
		return "unknown"
	}
	return tickEventNames[e]
}

func (e TickEvent) Collision() bool {
	return e == EventWallCollision || e == EventSelfCollision
}

type TickResult struct {
	Event TickEvent
	Head  Cell
}

// Engine owns a single game. It is not safe for concurrent use; the
// GameManager loop is its only caller.
type Engine struct {
	gridSize  int
	random    RandomSource
	snake     []Cell
	food      Cell
	direction Direction
	score     int
	status    Status
}

type EngineOption func(*Engine)

func WithGridSize(size int) EngineOption {
	return func(e *Engine) {
		e.gridSize = max(size, MinGridSize)
	}
}

func WithRandomSource(random RandomSource) EngineOption {
	return func(e *Engine) {
		if random != nil {
			e.random = random
		}
	}
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		gridSize: DefaultGridSize,
		random:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.reset()
	e.food = Cell{X: e.gridSize * 3 / 4, Y: e.gridSize * 3 / 4}
	e.status = StatusIdle
	return e
}

func (e *Engine) initialSnake() []Cell {
	snake := make([]Cell, InitialSnakeSize)
	center := e.gridSize / 2
	for i := range snake {
		snake[i] = Cell{X: center, Y: center + i}
	}
	return snake
}

func (e *Engine) reset() {
	e.snake = e.initialSnake()
	e.direction = InitialDirection
	e.score = 0
}

// Start resets the board and begins a new game from any state.
func (e *Engine) Start() {
	e.reset()
	e.food = e.spawnFood()
	e.status = StatusPlaying
}

// SetDirection turns the snake by 90 degrees. Input on the current axis,
// including a reversal, is ignored, as is anything sent while not playing.
func (e *Engine) SetDirection(d Direction) bool {
	if e.status != StatusPlaying || !d.Valid() {
		return false
	}
	if d.SameAxis(e.direction) {
		return false
	}
	e.direction = d
	return true
}

func (e *Engine) TogglePause() bool {
	switch e.status {
	case StatusPlaying:
		e.status = StatusPaused
	case StatusPaused:
		e.status = StatusPlaying
	default:
		return false
	}
	return true
}

func (e *Engine) Tick() TickResult {
	if e.status != StatusPlaying {
		return TickResult{Event: EventNone}
	}

	head := e.snake[0].Add(e.direction)

	if !e.inGrid(head) {
		e.status = StatusOver
		return TickResult{Event: EventWallCollision, Head: head}
	}

	if slices.Contains(e.snake, head) {
		e.status = StatusOver
		return TickResult{Event: EventSelfCollision, Head: head}
	}

	e.snake = append([]Cell{head}, e.snake...)

	if head == e.food {
		e.score += FoodReward
		e.food = e.spawnFood()
		return TickResult{Event: EventAte, Head: head}
	}

	e.snake = e.snake[:len(e.snake)-1]
	return TickResult{Event: EventMoved, Head: head}
}

// spawnFood draws uniform cells until one is off the snake.
func (e *Engine) spawnFood() Cell {
	if len(e.snake) >= e.gridSize*e.gridSize {
		return NoFood
	}

	for {
		candidate := Cell{X: e.random.Intn(e.gridSize), Y: e.random.Intn(e.gridSize)}
		if !slices.Contains(e.snake, candidate) {
			return candidate
		}
	}
}

func (e *Engine) inGrid(c Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < e.gridSize && c.Y < e.gridSize
}

func (e *Engine) Status() Status { return e.status }

func (e *Engine) Score() int { return e.score }

func (e *Engine) Direction() Direction { return e.direction }

func (e *Engine) State() State {
	return State{
		GridSize:  e.gridSize,
		Snake:     slices.Clone(e.snake),
		Food:      e.food,
		Direction: e.direction,
		Score:     e.score,
		Status:    e.status,
		IsPlaying: e.status == StatusPlaying,
		IsOver:    e.status == StatusOver,
	}
}
