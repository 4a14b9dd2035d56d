package metrics

import (
	"testing"

	"github.com/Mshel/neonsnake/internal/game"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

var _ game.Observer = (*Recorder)(nil)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.GameStarted()
	r.GameStarted()
	r.Ticked()
	r.Ticked()
	r.Ticked()
	r.FoodEaten()
	r.GameFinished(50, true)
	r.GameFinished(20, false)
	r.GameFinished(10, false)
	r.SessionOpened()
	r.SessionOpened()
	r.SessionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.gamesStarted))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.ticks))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.foodEaten))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.gamesFinished.WithLabelValues("new_high_score")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.gamesFinished.WithLabelValues("game_over")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.activeSessions))
	assert.Equal(t, 1, testutil.CollectAndCount(r.finalScores))
}

func TestRecorderRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)

	assert.Panics(t, func() { NewRecorder(reg) })
}
