package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements game.Observer on top of prometheus collectors.
type Recorder struct {
	gamesStarted   prometheus.Counter
	gamesFinished  *prometheus.CounterVec
	ticks          prometheus.Counter
	foodEaten      prometheus.Counter
	finalScores    prometheus.Histogram
	activeSessions prometheus.Gauge
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		gamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neonsnake_games_started_total",
			Help: "Total number of games started or restarted",
		}),
		gamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neonsnake_games_finished_total",
			Help: "Total number of finished games by outcome",
		}, []string{"outcome"}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neonsnake_ticks_total",
			Help: "Total number of game ticks that advanced a snake",
		}),
		foodEaten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neonsnake_food_eaten_total",
			Help: "Total number of food cells eaten",
		}),
		finalScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "neonsnake_final_score",
			Help:    "Histogram of final scores",
			Buckets: prometheus.LinearBuckets(0, 50, 10),
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "neonsnake_active_sessions",
			Help: "Current number of connected game sessions",
		}),
	}

	reg.MustRegister(r.gamesStarted, r.gamesFinished, r.ticks, r.foodEaten, r.finalScores, r.activeSessions)
	return r
}

func (r *Recorder) GameStarted() { r.gamesStarted.Inc() }

func (r *Recorder) Ticked() { r.ticks.Inc() }

func (r *Recorder) FoodEaten() { r.foodEaten.Inc() }

func (r *Recorder) GameFinished(score int, newRecord bool) {
	outcome := "game_over"
	if newRecord {
		outcome = "new_high_score"
	}
	r.gamesFinished.WithLabelValues(outcome).Inc()
	r.finalScores.Observe(float64(score))
}

func (r *Recorder) SessionOpened() { r.activeSessions.Inc() }

func (r *Recorder) SessionClosed() { r.activeSessions.Dec() }
