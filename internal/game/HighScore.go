package game

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
)

// HighScoreStore persists one best score per client key. A key that was
// never written reads as 0 with a nil error.
type HighScoreStore interface {
	GetHighScore(key string) (int, error)
	SaveHighScore(key string, score int) error
}

type HighScoreService struct {
	db *sql.DB
}

const tableName = "high_scores"

type Score struct {
	Key       string
	Score     int
	UpdatedAt time.Time
}

func NewHighScoreService(dbPath string) (*HighScoreService, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open high score database %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	service := &HighScoreService{db: db}
	if err := service.createTable(); err != nil {
		db.Close()
		return nil, err
	}

	return service, nil
}

// createTable creates the high_scores table if it does not exist.
func (serviceImpl *HighScoreService) createTable() error {
	const createTableSQL = `
	CREATE TABLE IF NOT EXISTS ` + tableName + ` (
		score_key TEXT PRIMARY KEY,
		score INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	_, err := serviceImpl.db.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to execute CREATE TABLE: %w", err)
	}
	log.Debug("High scores table ensured.")
	return nil
}

func (serviceImpl *HighScoreService) GetHighScore(key string) (int, error) {
	const selectSQL = `SELECT score FROM ` + tableName + ` WHERE score_key = ?;`

	var score int
	err := serviceImpl.db.QueryRow(selectSQL, key).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read high score for %s: %w", key, err)
	}
	return score, nil
}

func (serviceImpl *HighScoreService) SaveHighScore(key string, score int) error {
	const upsertSQL = `
	INSERT INTO ` + tableName + ` (score_key, score, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(score_key) DO UPDATE SET score = excluded.score, updated_at = excluded.updated_at;`

	_, err := serviceImpl.db.Exec(upsertSQL, key, score)
	if err != nil {
		return fmt.Errorf("failed to save high score for %s: %w", key, err)
	}
	return nil
}

// TopHighScores lists the best scores across all clients.
func (serviceImpl *HighScoreService) TopHighScores(limit int) ([]Score, error) {
	const selectSQL = `
	SELECT score_key, score, updated_at
	FROM ` + tableName + `
	ORDER BY score DESC, updated_at ASC
	LIMIT ?;`

	rows, err := serviceImpl.db.Query(selectSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query high scores: %w", err)
	}
	defer rows.Close()

	var scores []Score
	for rows.Next() {
		var score Score
		var updatedAt sql.NullTime
		if err := rows.Scan(&score.Key, &score.Score, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if updatedAt.Valid {
			score.UpdatedAt = updatedAt.Time
		}
		scores = append(scores, score)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating rows: %w", err)
	}

	return scores, nil
}

func (serviceImpl *HighScoreService) Close() error {
	return serviceImpl.db.Close()
}

// MemoryHighScoreStore keeps scores for the lifetime of the process.
type MemoryHighScoreStore struct {
	mu     sync.Mutex
	scores map[string]int
}

func NewMemoryHighScoreStore() *MemoryHighScoreStore {
	return &MemoryHighScoreStore{scores: make(map[string]int)}
}

func (m *MemoryHighScoreStore) GetHighScore(key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scores[key], nil
}

func (m *MemoryHighScoreStore) SaveHighScore(key string, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[key] = score
	return nil
}

func (m *MemoryHighScoreStore) TopHighScores(limit int) ([]Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	scores := make([]Score, 0, len(m.scores))
	for key, score := range m.scores {
		scores = append(scores, Score{Key: key, Score: score})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Key < scores[j].Key
	})
	if limit >= 0 && len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}

// RankedHighScoreStore can also list the best scores for a leaderboard.
type RankedHighScoreStore interface {
	HighScoreStore
	TopHighScores(limit int) ([]Score, error)
}

// OpenHighScores opens the sqlite store at dbPath. When the database cannot
// be opened, scores live in memory for this process only.
func OpenHighScores(dbPath string) (RankedHighScoreStore, func()) {
	service, err := NewHighScoreService(dbPath)
	if err != nil {
		log.Error("High score database unavailable, keeping scores in memory.", "path", dbPath, "error", err)
		return NewMemoryHighScoreStore(), func() {}
	}
	return service, func() {
		if err := service.Close(); err != nil {
			log.Warn("Closing high score database failed.", "path", dbPath, "error", err)
		}
	}
}
