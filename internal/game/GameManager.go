package game

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

var (
	ErrManagerStopped = errors.New("game manager stopped")
	ErrAlreadyRunning = errors.New("game loop already running")
)

// Pilot proposes a heading before each tick while the autopilot is on.
type Pilot interface {
	NextDirection(state State) (Direction, error)
}

// Observer receives lifecycle hooks from the game loop.
type Observer interface {
	GameStarted()
	Ticked()
	FoodEaten()
	GameFinished(score int, newRecord bool)
}

type noopObserver struct{}

func (noopObserver) GameStarted() {}
func (noopObserver) Ticked() {}
func (noopObserver) FoodEaten() {}
func (noopObserver) GameFinished(int, bool) {}

// Update is what render surfaces receive after every state change.
type Update struct {
	State        State         `json:"state"`
	Notification *Notification `json:"notification,omitempty"`
	Outcome      *Outcome      `json:"outcome,omitempty"`
}

type commandKind int

const (
	commandStart commandKind = iota
	commandTogglePause
	commandDirection
	commandAutopilot
)

type command struct {
	kind      commandKind
	direction Direction
	enabled   bool
}

const subscriberBufferSize = 8

// GameManager is the controller for one Engine. Run owns the engine; every
// other method only talks to it through the command channel or reads the
// last published snapshot.
type GameManager struct {
	ID string

	engine       *Engine
	highScores   HighScoreStore
	highScoreKey string
	notifier     Notifier
	observer     Observer
	pilot        Pilot
	autopilot    bool
	highScore    int
	tickDuration time.Duration
	newTicker    TickerFactory
	logger       *log.Logger

	commands chan command
	done     chan struct{}
	running  atomic.Bool

	stateMu sync.RWMutex
	state   State

	subMu       sync.Mutex
	subscribers map[int]chan Update
	nextSubID   int
	closed      bool
}

type Option func(*GameManager)

func WithID(id string) Option {
	return func(gm *GameManager) { gm.ID = id }
}

func WithHighScoreKey(key string) Option {
	return func(gm *GameManager) { gm.highScoreKey = key }
}

func WithNotifier(n Notifier) Option {
	return func(gm *GameManager) { gm.notifier = n }
}

func WithObserver(o Observer) Option {
	return func(gm *GameManager) {
		if o != nil {
			gm.observer = o
		}
	}
}

func WithPilot(p Pilot) Option {
	return func(gm *GameManager) { gm.pilot = p }
}

func WithTickDuration(d time.Duration) Option {
	return func(gm *GameManager) {
		if d > 0 {
			gm.tickDuration = d
		}
	}
}

func WithTickerFactory(f TickerFactory) Option {
	return func(gm *GameManager) {
		if f != nil {
			gm.newTicker = f
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(gm *GameManager) {
		if l != nil {
			gm.logger = l
		}
	}
}

func NewGameManager(engine *Engine, highScores HighScoreStore, opts ...Option) *GameManager {
	if engine == nil {
		engine = NewEngine()
	}
	if highScores == nil {
		highScores = NewMemoryHighScoreStore()
	}

	gm := &GameManager{
		ID:           "local",
		engine:       engine,
		highScores:   highScores,
		highScoreKey: HighScoreKey,
		observer:     noopObserver{},
		tickDuration: GameTickDuration,
		newTicker:    NewTimeTicker,
		logger:       log.Default(),
		commands:     make(chan command, commandBufferSize),
		done:         make(chan struct{}),
		subscribers:  make(map[int]chan Update),
	}
	for _, opt := range opts {
		opt(gm)
	}

	gm.highScore = gm.loadHighScore()
	gm.state = gm.snapshot()
	return gm
}

// Run drives the engine until ctx is cancelled. It may be called once.
func (gm *GameManager) Run(ctx context.Context) error {
	if !gm.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer gm.shutdown()

	gm.logger.Info("Game loop started.", "game", gm.ID)

	var ticker Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		var tickChannel <-chan time.Time
		if ticker != nil {
			tickChannel = ticker.C()
		}

		select {
		case <-ctx.Done():
			gm.logger.Info("Game loop stopped.", "game", gm.ID)
			return nil
		case <-tickChannel:
			gm.drainCommands()
			gm.processGameTick()
		case cmd := <-gm.commands:
			gm.processCommand(cmd)
		}

		ticker = gm.syncTicker(ticker)
	}
}

// syncTicker keeps a live ticker exactly while the engine is playing.
func (gm *GameManager) syncTicker(ticker Ticker) Ticker {
	playing := gm.engine.Status() == StatusPlaying
	switch {
	case playing && ticker == nil:
		return gm.newTicker(gm.tickDuration)
	case !playing && ticker != nil:
		ticker.Stop()
		return nil
	}
	return ticker
}

func (gm *GameManager) shutdown() {
	close(gm.done)

	gm.subMu.Lock()
	defer gm.subMu.Unlock()
	gm.closed = true
	for id, ch := range gm.subscribers {
		close(ch)
		delete(gm.subscribers, id)
	}
}

// Done is closed once Run has returned.
func (gm *GameManager) Done() <-chan struct{} {
	return gm.done
}

func (gm *GameManager) dispatch(cmd command) error {
	select {
	case <-gm.done:
		return ErrManagerStopped
	default:
	}

	select {
	case gm.commands <- cmd:
		return nil
	case <-gm.done:
		return ErrManagerStopped
	}
}

func (gm *GameManager) Start() error {
	return gm.dispatch(command{kind: commandStart})
}

func (gm *GameManager) TogglePause() error {
	return gm.dispatch(command{kind: commandTogglePause})
}

func (gm *GameManager) SetDirection(d Direction) error {
	return gm.dispatch(command{kind: commandDirection, direction: d})
}

func (gm *GameManager) SetAutopilot(enabled bool) error {
	return gm.dispatch(command{kind: commandAutopilot, enabled: enabled})
}

// Snapshot returns the last published state.
func (gm *GameManager) Snapshot() State {
	gm.stateMu.RLock()
	defer gm.stateMu.RUnlock()
	return gm.state
}

// Subscribe registers a render surface. Slow readers lose intermediate
// updates, never the latest one. The channel is closed when Run returns.
func (gm *GameManager) Subscribe() (<-chan Update, func()) {
	gm.subMu.Lock()
	defer gm.subMu.Unlock()

	ch := make(chan Update, subscriberBufferSize)
	if gm.closed {
		close(ch)
		return ch, func() {}
	}

	id := gm.nextSubID
	gm.nextSubID++
	gm.subscribers[id] = ch
	ch <- Update{State: gm.Snapshot()}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			gm.subMu.Lock()
			defer gm.subMu.Unlock()
			if existing, ok := gm.subscribers[id]; ok {
				delete(gm.subscribers, id)
				close(existing)
			}
		})
	}
}

func (gm *GameManager) processCommand(cmd command) {
	switch cmd.kind {
	case commandStart:
		gm.engine.Start()
		gm.observer.GameStarted()
		gm.logger.Debug("Game started.", "game", gm.ID)
		notification := gameStartedNotification()
		gm.notify(notification)
		gm.publish(&notification, nil)

	case commandTogglePause:
		if gm.engine.TogglePause() {
			gm.publish(nil, nil)
		}

	case commandDirection:
		if gm.engine.SetDirection(cmd.direction) {
			gm.publish(nil, nil)
		}

	case commandAutopilot:
		if cmd.enabled && gm.pilot == nil {
			gm.logger.Warn("Autopilot requested but no pilot is configured.", "game", gm.ID)
			return
		}
		if gm.autopilot != cmd.enabled {
			gm.autopilot = cmd.enabled
			gm.publish(nil, nil)
		}
	}
}

// drainCommands applies every queued command so a tick always sees input
// that arrived before it fired.
func (gm *GameManager) drainCommands() {
	for {
		select {
		case cmd := <-gm.commands:
			gm.processCommand(cmd)
		default:
			return
		}
	}
}

// processGameTick is called every tickDuration while the engine is playing.
func (gm *GameManager) processGameTick() {
	if gm.autopilot && gm.pilot != nil && gm.engine.Status() == StatusPlaying {
		dir, err := gm.pilot.NextDirection(gm.engine.State())
		if err != nil {
			gm.logger.Warn("Autopilot failed, keeping heading.", "game", gm.ID, "error", err)
		} else {
			gm.engine.SetDirection(dir)
		}
	}

	result := gm.engine.Tick()
	if result.Event == EventNone {
		return
	}
	gm.observer.Ticked()

	switch {
	case result.Event == EventAte:
		gm.observer.FoodEaten()
	case result.Event.Collision():
		gm.finishGame(result)
		return
	}

	gm.publish(nil, nil)
}

// finishGame settles the final score against the stored best.
func (gm *GameManager) finishGame(result TickResult) {
	score := gm.engine.Score()
	previous := gm.loadHighScore()
	outcome := Outcome{Score: score, PreviousHighScore: previous}

	if score > previous {
		outcome.NewRecord = true
		if err := gm.highScores.SaveHighScore(gm.highScoreKey, score); err != nil {
			gm.logger.Error("High score persist failed.", "game", gm.ID, "key", gm.highScoreKey, "error", err)
		}
		gm.highScore = score
	} else {
		gm.highScore = previous
	}

	gm.logger.Info("Game over.", "game", gm.ID, "cause", result.Event, "score", score, "new_record", outcome.NewRecord)
	gm.observer.GameFinished(score, outcome.NewRecord)

	notification := outcome.Notification()
	gm.notify(notification)
	gm.publish(&notification, &outcome)
}

func (gm *GameManager) loadHighScore() int {
	score, err := gm.highScores.GetHighScore(gm.highScoreKey)
	if err != nil {
		gm.logger.Warn("High score read failed, assuming 0.", "key", gm.highScoreKey, "error", err)
		return 0
	}
	return score
}

func (gm *GameManager) notify(n Notification) {
	if gm.notifier != nil {
		gm.notifier.Notify(gm.ID, n)
	}
}

func (gm *GameManager) snapshot() State {
	state := gm.engine.State()
	state.HighScore = gm.highScore
	state.Autopilot = gm.autopilot
	return state
}

func (gm *GameManager) publish(n *Notification, o *Outcome) {
	update := Update{State: gm.snapshot(), Notification: n, Outcome: o}

	gm.stateMu.Lock()
	gm.state = update.State
	gm.stateMu.Unlock()

	gm.subMu.Lock()
	defer gm.subMu.Unlock()
	for _, ch := range gm.subscribers {
		deliverLatest(ch, update)
	}
}

// deliverLatest drops the oldest queued update when a subscriber lags.
func deliverLatest(ch chan Update, update Update) {
	for {
		select {
		case ch <- update:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
