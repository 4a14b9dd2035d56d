package game

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHighScoreService(t *testing.T) *HighScoreService {
	t.Helper()
	service, err := NewHighScoreService(filepath.Join(t.TempDir(), "highscores.db"))
	require.NoError(t, err)
	t.Cleanup(func() { service.Close() })
	return service
}

func TestHighScoreServiceMissingKeyIsZero(t *testing.T) {
	service := newTestHighScoreService(t)

	score, err := service.GetHighScore(HighScoreKey)
	require.NoError(t, err)
	assert.Equal(t, 0, score)
}

func TestHighScoreServiceUpsert(t *testing.T) {
	service := newTestHighScoreService(t)

	require.NoError(t, service.SaveHighScore(HighScoreKey, 30))
	require.NoError(t, service.SaveHighScore(HighScoreKey, 50))

	score, err := service.GetHighScore(HighScoreKey)
	require.NoError(t, err)
	assert.Equal(t, 50, score)
}

func TestHighScoreServiceSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "highscores.db")

	first, err := NewHighScoreService(path)
	require.NoError(t, err)
	require.NoError(t, first.SaveHighScore(HighScoreKey, 40))
	require.NoError(t, first.Close())

	second, err := NewHighScoreService(path)
	require.NoError(t, err)
	defer second.Close()

	score, err := second.GetHighScore(HighScoreKey)
	require.NoError(t, err)
	assert.Equal(t, 40, score)
}

func TestHighScoreServiceTopHighScores(t *testing.T) {
	service := newTestHighScoreService(t)

	require.NoError(t, service.SaveHighScore("snakeHighScore:ssh:alice", 70))
	require.NoError(t, service.SaveHighScore("snakeHighScore:ssh:bob", 120))
	require.NoError(t, service.SaveHighScore("snakeHighScore:ssh:carol", 10))

	scores, err := service.TopHighScores(2)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "snakeHighScore:ssh:bob", scores[0].Key)
	assert.Equal(t, 120, scores[0].Score)
	assert.Equal(t, "snakeHighScore:ssh:alice", scores[1].Key)
	assert.False(t, scores[0].UpdatedAt.IsZero())
}

func TestMemoryHighScoreStoreTopHighScores(t *testing.T) {
	store := NewMemoryHighScoreStore()
	require.NoError(t, store.SaveHighScore("b", 10))
	require.NoError(t, store.SaveHighScore("a", 10))
	require.NoError(t, store.SaveHighScore("c", 90))

	scores, err := store.TopHighScores(10)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{scores[0].Key, scores[1].Key, scores[2].Key})
}

func TestManagerPersistsThroughSQLite(t *testing.T) {
	service := newTestHighScoreService(t)
	require.NoError(t, service.SaveHighScore(HighScoreKey, 30))

	engine := playingEngine([]Cell{{0, 5}, {1, 5}}, Left, Cell{15, 15})
	engine.score = 50
	gm := NewGameManager(engine, service, WithLogger(quietLogger()))

	gm.processGameTick()

	score, err := service.GetHighScore(HighScoreKey)
	require.NoError(t, err)
	assert.Equal(t, 50, score)
}

func TestOpenHighScoresFallsBackToMemory(t *testing.T) {
	store, closeStore := OpenHighScores(filepath.Join(t.TempDir(), "missing", "dir", "highscores.db"))
	defer closeStore()

	_, isMemory := store.(*MemoryHighScoreStore)
	assert.True(t, isMemory)

	sqliteStore, closeSQLite := OpenHighScores(filepath.Join(t.TempDir(), "highscores.db"))
	defer closeSQLite()
	_, isSQLite := sqliteStore.(*HighScoreService)
	assert.True(t, isSQLite)
}
