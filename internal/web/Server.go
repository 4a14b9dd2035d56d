package web

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Mshel/neonsnake/internal/game"
	"github.com/Mshel/neonsnake/internal/render"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const sessionContextKey = "session"

type createSessionRequest struct {
	Player string `json:"player"`
}

type createSessionResponse struct {
	ID     string     `json:"id"`
	Player string     `json:"player"`
	State  game.State `json:"state"`
}

type directionRequest struct {
	Direction string `json:"direction" binding:"required"`
}

type autopilotRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type handler struct {
	registry *Registry
	logger   *log.Logger
}

// NewRouter wires the session API, the board renderer, the update stream
// and the metrics endpoint. A nil gatherer hides /metrics.
func NewRouter(registry *Registry, gatherer prometheus.Gatherer, logger *log.Logger) *gin.Engine {
	if logger == nil {
		logger = log.Default()
	}
	h := &handler{registry: registry, logger: logger}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", h.healthz)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/sessions")
	api.POST("", h.createSession)

	session := api.Group("/:id", h.loadSession)
	session.GET("", h.getSession)
	session.DELETE("", h.deleteSession)
	session.POST("/start", h.start)
	session.POST("/pause", h.pause)
	session.POST("/direction", h.direction)
	session.POST("/autopilot", h.autopilot)
	session.GET("/board.png", h.board)
	session.GET("/ws", h.stream)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return router
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request.",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (h *handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.registry.Len()})
}

func (h *handler) loadSession(c *gin.Context) {
	session, err := h.registry.Get(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	session.Touch(h.registry.now())
	c.Set(sessionContextKey, session)
	c.Next()
}

func sessionFrom(c *gin.Context) *Session {
	return c.MustGet(sessionContextKey).(*Session)
}

func (h *handler) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.registry.Create(req.Player)
	if errors.Is(err, ErrTooManySessions) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, createSessionResponse{
		ID:     session.ID,
		Player: session.Player,
		State:  session.Manager.Snapshot(),
	})
}

func (h *handler) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, sessionFrom(c).Manager.Snapshot())
}

func (h *handler) deleteSession(c *gin.Context) {
	if err := h.registry.Close(sessionFrom(c).ID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) start(c *gin.Context) {
	respondToCommand(c, sessionFrom(c).Manager.Start())
}

func (h *handler) pause(c *gin.Context) {
	respondToCommand(c, sessionFrom(c).Manager.TogglePause())
}

func (h *handler) direction(c *gin.Context) {
	var req directionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dir, ok := game.ParseDirection(req.Direction)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"ignored": true})
		return
	}
	respondToCommand(c, sessionFrom(c).Manager.SetDirection(dir))
}

func (h *handler) autopilot(c *gin.Context) {
	var req autopilotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	respondToCommand(c, sessionFrom(c).Manager.SetAutopilot(*req.Enabled))
}

// respondToCommand answers 202. The game loop applies the command later.
func respondToCommand(c *gin.Context, err error) {
	switch {
	case errors.Is(err, game.ErrManagerStopped):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusAccepted, gin.H{"accepted": true})
	}
}

func (h *handler) board(c *gin.Context) {
	size := 0
	if raw := c.Query("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 || parsed > render.MaxImageSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "size must be between 0 and " + strconv.Itoa(render.MaxImageSize)})
			return
		}
		size = parsed
	}

	var buf bytes.Buffer
	if err := render.WritePNG(&buf, sessionFrom(c).Manager.Snapshot(), size); err != nil {
		h.logger.Error("Board render failed.", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
