package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httpapi "github.com/davidthedutch/vibe-control-panel/relay/internal/api/http"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/api/middleware"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/api/ws"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/domain/registry"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/domain/session"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/infrastructure/config"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/infrastructure/logging"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/infrastructure/monitoring"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/infrastructure/resilience"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/shell"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	sessions   *registry.Registry[*session.Session]
	mode       shell.Mode
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// NewServer creates a new server instance. It fails when the requested shell
// mode cannot be provided.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	mode, err := shell.ParseMode(cfg.Shell.Mode)
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing terminal relay",
		zap.String("addr", cfg.Address()),
		zap.String("shell", cfg.Shell.Path),
		zap.String("shell_mode", string(mode)),
	)

	// Metrics first, other components report into them
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(promRegistry)

	base, err := shell.Select(mode, shell.Options{
		Shell:     cfg.Shell.Path,
		KillGrace: cfg.Shell.KillGrace,
	}, logger.Component("shell"))
	if err != nil {
		return nil, fmt.Errorf("failed to select shell backend: %w", err)
	}
	metrics.SetShellMode(base.Mode())

	breakerLog := logger.Component("breaker")
	breaker := resilience.New("shell-spawn", resilience.Settings{
		Timeout: cfg.Breaker.Timeout,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.Failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || shell.IsRequestError(err)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			breakerLog.Warn("Spawn circuit breaker changed state",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
			metrics.SetBreakerState(to)
		},
	})
	spawner := shell.Guard(base, breaker)

	defaultDir := cfg.Shell.WorkDir
	if defaultDir == "" {
		if defaultDir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
	}

	sessions := registry.New[*session.Session](metrics.SetSessionsActive)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	// Diagnostics
	handlers := httpapi.NewHandlers(sessions, base.Mode(), metrics.Uptime)
	handlers.Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	// Terminal endpoint, rate limited per client IP
	wsHandler := ws.NewHandler(ws.Config{
		MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
		WriteTimeout:    cfg.WebSocket.WriteTimeout,
		PingInterval:    cfg.WebSocket.PingInterval,
		PongTimeout:     cfg.WebSocket.PongTimeout,
		SendQueue:       cfg.WebSocket.SendQueue,
		DefaultDir:      defaultDir,
	}, sessions, spawner, metrics, logger.Component("ws"))

	terminal := router.Group("")
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		terminal.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	terminal.GET("/", wsHandler.HandleConnection)
	terminal.GET("/terminal", wsHandler.HandleConnection)

	logger.Info("Server initialized successfully",
		zap.String("shell_mode", string(base.Mode())),
		zap.String("default_cwd", defaultDir),
	)

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              cfg.Address(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		sessions: sessions,
		mode:     base.Mode(),
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Mode returns the shell backend in use.
func (s *Server) Mode() shell.Mode {
	return s.mode
}

// Run listens on the configured address and serves until Shutdown.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes every session and waits for
// their shells to exit or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	// Upgraded connections are hijacked, so this only covers plain HTTP.
	err := s.httpServer.Shutdown(ctx)

	open := s.sessions.Snapshot()
	for _, sess := range open {
		sess.Close()
	}

	for _, sess := range open {
		select {
		case <-sess.Done():
		case <-ctx.Done():
			s.logger.Warn("Timed out waiting for shells to exit",
				zap.Int("sessions", len(open)),
				zap.Error(ctx.Err()),
			)
			_ = s.logger.Sync()
			return errors.Join(err, ctx.Err())
		}
	}
	s.logger.Info("All sessions closed", zap.Int("sessions", len(open)))

	_ = s.logger.Sync()
	return err
}
