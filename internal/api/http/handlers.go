package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/davidthedutch/vibe-control-panel/relay/internal/domain/registry"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/domain/session"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/shell"
)

// Handlers contains the diagnostics HTTP handlers
type Handlers struct {
	sessions *registry.Registry[*session.Session]
	mode     shell.Mode
	uptime   func() time.Duration
}

// NewHandlers creates a new handler set
func NewHandlers(sessions *registry.Registry[*session.Session], mode shell.Mode, uptime func() time.Duration) *Handlers {
	return &Handlers{
		sessions: sessions,
		mode:     mode,
		uptime:   uptime,
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string  `json:"status"`
	Mode          string  `json:"mode"`
	Sessions      int     `json:"sessions"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Health reports liveness and the shell backend in use
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "healthy",
		Mode:          string(h.mode),
		Sessions:      h.sessions.Len(),
		UptimeSeconds: h.uptime().Seconds(),
	})
}

// ListSessions lists all registered sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	entries := h.sessions.Snapshot()
	infos := make([]session.Info, 0, len(entries))
	for _, s := range entries {
		infos = append(infos, s.Info())
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": infos,
		"count":    len(infos),
	})
}

// GetSession returns one session
func (h *Handlers) GetSession(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	s, ok := h.sessions.Lookup(registry.ID(id))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	c.JSON(http.StatusOK, s.Info())
}

// Register mounts the handlers on a router group
func (h *Handlers) Register(r gin.IRoutes) {
	r.GET("/health", h.Health)
	r.GET("/sessions", h.ListSessions)
	r.GET("/sessions/:id", h.GetSession)
}
