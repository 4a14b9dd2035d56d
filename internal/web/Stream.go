package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Mshel/neonsnake/internal/game"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	replyQueueSize = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientMessage is a command sent by the browser over the stream.
type clientMessage struct {
	Type      string `json:"type"`
	Direction string `json:"direction,omitempty"`
	Enabled   bool   `json:"enabled,omitempty"`
}

// streamMessage is either an update or an error reply.
type streamMessage struct {
	Type string `json:"type"`
	*game.Update
	Error string `json:"error,omitempty"`
}

type streamClient struct {
	conn    *websocket.Conn
	session *Session
	replies chan streamMessage
	logger  *log.Logger
	now     func() time.Time
}

func (h *handler) stream(c *gin.Context) {
	session := sessionFrom(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed.", "session", session.ID, "error", err)
		return
	}

	updates, unsubscribe := session.Manager.Subscribe()
	client := &streamClient{
		conn:    conn,
		session: session,
		replies: make(chan streamMessage, replyQueueSize),
		logger:  h.logger.With("session", session.ID),
		now:     h.registry.now,
	}
	client.logger.Debug("Stream connected.")

	session.streams.Add(1)
	go client.writePump(updates)
	client.readPump()
	unsubscribe()
	session.streams.Add(-1)
	session.Touch(client.now())
}

func (s *streamClient) readPump() {
	defer s.conn.Close()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("Stream read error.", "error", err)
			}
			return
		}

		s.session.Touch(s.now())

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.reply("malformed message: " + err.Error())
			continue
		}
		if err := s.handle(msg); err != nil {
			s.reply(err.Error())
		}
	}
}

func (s *streamClient) handle(msg clientMessage) error {
	manager := s.session.Manager
	switch msg.Type {
	case "start":
		return manager.Start()
	case "pause":
		return manager.TogglePause()
	case "autopilot":
		return manager.SetAutopilot(msg.Enabled)
	case "direction":
		dir, ok := game.ParseDirection(msg.Direction)
		if !ok {
			return nil
		}
		return manager.SetDirection(dir)
	}
	s.logger.Debug("Ignoring unknown stream message.", "type", msg.Type)
	return nil
}

// reply queues an error for the client and drops it if the queue is full.
func (s *streamClient) reply(text string) {
	select {
	case s.replies <- streamMessage{Type: "error", Error: text}:
	default:
	}
}

func (s *streamClient) writePump(updates <-chan game.Update) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case update, ok := <-updates:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := s.conn.WriteJSON(streamMessage{Type: "update", Update: &update}); err != nil {
				return
			}

		case msg := <-s.replies:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
