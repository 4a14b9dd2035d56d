package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Mshel/neonsnake/internal/game"
	"github.com/Mshel/neonsnake/internal/metrics"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

type testServer struct {
	registry *Registry
	router   *gin.Engine
	tickers  chan *manualTicker
	store    *game.MemoryHighScoreStore
	clock    *atomic.Int64
}

func (s *testServer) advance(d time.Duration) {
	s.clock.Add(int64(d))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	tickers := make(chan *manualTicker, 16)
	store := game.NewMemoryHighScoreStore()
	reg := prometheus.NewRegistry()
	logger := log.New(io.Discard)
	clock := &atomic.Int64{}
	clock.Store(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())

	registry := NewRegistry(ctx, store,
		WithRecorder(metrics.NewRecorder(reg)),
		WithLogger(logger),
		WithSettings(func() Settings {
			return Settings{
				GridSize:     12,
				TickDuration: time.Hour,
				HighScoreKey: game.HighScoreKey,
				MaxSessions:  3,
				IdleTimeout:  time.Minute,
			}
		}),
		WithClock(func() time.Time { return time.Unix(0, clock.Load()) }),
		WithTickerFactory(func(time.Duration) game.Ticker {
			ticker := &manualTicker{ch: make(chan time.Time)}
			tickers <- ticker
			return ticker
		}),
	)
	t.Cleanup(func() {
		registry.CloseAll()
		cancel()
	})

	return &testServer{
		registry: registry,
		router:   NewRouter(registry, reg, logger),
		tickers:  tickers,
		store:    store,
		clock:    clock,
	}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) createSession(t *testing.T, player string) createSessionResponse {
	t.Helper()
	w := s.do(http.MethodPost, "/api/sessions", `{"player":"`+player+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp createSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (s *testServer) manager(t *testing.T, id string) *game.GameManager {
	t.Helper()
	session, err := s.registry.Get(id)
	require.NoError(t, err)
	return session.Manager
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestServer(t)

	created := s.createSession(t, "alice")
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "alice", created.Player)
	assert.Equal(t, game.StatusIdle, created.State.Status)
	assert.Equal(t, 12, created.State.GridSize)

	w := s.do(http.MethodGet, "/api/sessions/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var state game.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, created.State, state)
}

func TestCreateSessionWithoutBody(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp createSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.Player, "Player_"))
}

func TestUnknownSessionAndRoute(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/sessions/nope", "/api/sessions/nope/board.png"} {
		w := s.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "session not found")
	}

	w := s.do(http.MethodPost, "/api/sessions/nope/start", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"not found"}`, w.Body.String())
}

func TestMalformedJSON(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t, "bob")

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/sessions", "{").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/sessions/"+created.ID+"/direction", "{").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/sessions/"+created.ID+"/direction", "{}").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/sessions/"+created.ID+"/autopilot", "{}").Code)
}

func TestCommandsReachTheGame(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t, "carol")
	base := "/api/sessions/" + created.ID
	manager := s.manager(t, created.ID)

	assert.Equal(t, http.StatusAccepted, s.do(http.MethodPost, base+"/start", "").Code)
	require.Eventually(t, func() bool {
		return manager.Snapshot().Status == game.StatusPlaying
	}, time.Second, 5*time.Millisecond)

	w := s.do(http.MethodPost, base+"/direction", `{"direction":"sideways"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ignored":true}`, w.Body.String())

	assert.Equal(t, http.StatusAccepted, s.do(http.MethodPost, base+"/direction", `{"direction":"ArrowLeft"}`).Code)
	require.Eventually(t, func() bool {
		return manager.Snapshot().Direction == game.Left
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, http.StatusAccepted, s.do(http.MethodPost, base+"/pause", "").Code)
	require.Eventually(t, func() bool {
		return manager.Snapshot().Status == game.StatusPaused
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, http.StatusAccepted, s.do(http.MethodPost, base+"/autopilot", `{"enabled":false}`).Code)
}

func TestDeleteSessionStopsLoopAndTimer(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t, "dave")
	base := "/api/sessions/" + created.ID
	manager := s.manager(t, created.ID)

	require.Equal(t, http.StatusAccepted, s.do(http.MethodPost, base+"/start", "").Code)
	var ticker *manualTicker
	select {
	case ticker = <-s.tickers:
	case <-time.After(time.Second):
		t.Fatal("no ticker started")
	}

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, base, "").Code)
	assert.Equal(t, 0, s.registry.Len())
	assert.True(t, ticker.stopped.Load())

	select {
	case <-manager.Done():
	default:
		t.Fatal("game loop still running")
	}

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, base, "").Code)
	assert.ErrorIs(t, manager.Start(), game.ErrManagerStopped)
}

func TestBoardPNG(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t, "erin")
	base := "/api/sessions/" + created.ID + "/board.png"

	w := s.do(http.MethodGet, base+"?size=96", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 96, img.Bounds().Dx())

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, base+"?size=abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, base+"?size=99999", "").Code)
}

func TestMetricsAndHealth(t *testing.T) {
	s := newTestServer(t)
	s.createSession(t, "frank")

	w := s.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "neonsnake_active_sessions 1")

	w = s.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":1}`, w.Body.String())
}

func TestWebSessionsUseScopedHighScoreKey(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.store.SaveHighScore("snakeHighScore:web:grace", 80))
	require.NoError(t, s.store.SaveHighScore("snakeHighScore:web:heidi", 20))

	created := s.createSession(t, "grace")
	assert.Equal(t, 80, created.State.HighScore)
}

func readStream(t *testing.T, conn *websocket.Conn, match func(streamMessage) bool) streamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg streamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func TestWebSocketStream(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t, "ivan")

	server := httptest.NewServer(s.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/sessions/" + created.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readStream(t, conn, func(streamMessage) bool { return true })
	assert.Equal(t, "update", first.Type)
	require.NotNil(t, first.Update)
	assert.Equal(t, game.StatusIdle, first.State.Status)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "start"}))
	started := readStream(t, conn, func(m streamMessage) bool {
		return m.Update != nil && m.Notification != nil
	})
	assert.Equal(t, game.StatusPlaying, started.State.Status)
	assert.Equal(t, game.NotificationGameStarted, started.Notification.Kind)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "direction", Direction: "right"}))
	turned := readStream(t, conn, func(m streamMessage) bool {
		return m.Update != nil && m.State.Direction == game.Right
	})
	assert.Equal(t, game.StatusPlaying, turned.State.Status)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	reply := readStream(t, conn, func(m streamMessage) bool { return m.Type == "error" })
	assert.Contains(t, reply.Error, "malformed message")

	require.NoError(t, s.registry.Close(created.ID))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			break
		}
	}
}

func TestCreateSessionWhenFull(t *testing.T) {
	s := newTestServer(t)
	first := s.createSession(t, "a")
	s.createSession(t, "b")
	s.createSession(t, "c")

	w := s.do(http.MethodPost, "/api/sessions", `{"player":"d"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), ErrTooManySessions.Error())
	assert.Equal(t, 3, s.registry.Len())

	_, err := s.registry.Create("e")
	assert.ErrorIs(t, err, ErrTooManySessions)

	require.NoError(t, s.registry.Close(first.ID))
	s.createSession(t, "d")
}

func TestReapClosesIdleSessions(t *testing.T) {
	s := newTestServer(t)
	idle := s.createSession(t, "idle")
	busy := s.createSession(t, "busy")

	s.advance(50 * time.Second)
	w := s.do(http.MethodGet, "/api/sessions/"+busy.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	s.advance(20 * time.Second)
	assert.Equal(t, 1, s.registry.Reap())

	_, err := s.registry.Get(idle.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.registry.Get(busy.ID)
	assert.NoError(t, err)

	s.advance(time.Hour)
	assert.Equal(t, 1, s.registry.Reap())
	assert.Equal(t, 0, s.registry.Len())
}

func TestReapKeepsStreamedSessions(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t, "watcher")

	server := httptest.NewServer(s.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/sessions/" + created.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	readStream(t, conn, func(streamMessage) bool { return true })

	s.advance(time.Hour)
	assert.Equal(t, 0, s.registry.Reap())
	_, err = s.registry.Get(created.ID)
	assert.NoError(t, err)
}
