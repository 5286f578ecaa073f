package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davidthedutch/vibe-control-panel/relay/internal/api/middleware"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/domain/registry"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/domain/session"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/infrastructure/monitoring"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/shared/id"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/shell"
)

// Config holds per-connection limits.
type Config struct {
	MaxMessageBytes int64
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	PongTimeout     time.Duration
	SendQueue       int

	// DefaultDir is the cwd for create requests that carry none.
	DefaultDir string
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxMessageBytes: 1 << 20,
		WriteTimeout:    10 * time.Second,
		PingInterval:    30 * time.Second,
		PongTimeout:     60 * time.Second,
		SendQueue:       256,
	}
}

// Handler upgrades terminal connections and runs their sessions.
type Handler struct {
	cfg      Config
	sessions *registry.Registry[*session.Session]
	spawner  shell.Spawner
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler
func NewHandler(
	cfg Config,
	sessions *registry.Registry[*session.Session],
	spawner shell.Spawner,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		cfg:      cfg,
		sessions: sessions,
		spawner:  spawner,
		metrics:  metrics,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 32 * 1024,
			// Origin control is left to the deployment.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleConnection upgrades the request and serves one terminal session
// until the client disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written an HTTP error
		h.logger.Debug("WebSocket upgrade failed", zap.String("remote_addr", c.ClientIP()), zap.Error(err))
		return
	}

	connID := id.NewConnectionID().String()
	logger := h.logger.With(zap.String("connection_id", connID))
	if rid := middleware.GetRequestID(c); rid != "" {
		logger = logger.With(zap.String("request_id", rid))
	}
	conn := newConnection(ws, h.cfg, h.metrics, logger)

	terminalID, sess := h.sessions.Register(func(tid registry.ID) *session.Session {
		return session.New(session.Options{
			ID:           tid,
			ConnectionID: connID,
			RemoteAddr:   c.Request.RemoteAddr,
			Transport:    conn,
			Spawner:      h.spawner,
			DefaultDir:   h.cfg.DefaultDir,
			Logger:       h.logger,
			Metrics:      h.metrics,
			OnRelease: func(tid registry.ID) {
				h.sessions.Unregister(tid)
			},
		})
	})
	logger = logger.With(zap.Int64("terminal_id", int64(terminalID)))

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	logger.Info("Client connected", zap.String("remote_addr", c.Request.RemoteAddr))

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error { return conn.readPump(ctx, sess) })
	g.Go(func() error { return conn.writePump(ctx) })
	err = g.Wait()

	sess.Close()

	if err != nil {
		logger.Warn("Client connection failed", zap.Error(err))
		return
	}
	logger.Info("Client disconnected")
}
