package monitoring

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/davidthedutch/vibe-control-panel/relay/internal/infrastructure/resilience"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/shell"
)

// Spawn results.
const (
	SpawnSuccess      = "success"
	SpawnRequestError = "request_error"
	SpawnFailure      = "failure"
	SpawnCircuitOpen  = "circuit_open"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive prometheus.Gauge
	ShellMode      *prometheus.GaugeVec
	Spawns         *prometheus.CounterVec
	ShellExits     *prometheus.CounterVec
	BytesRelayed   *prometheus.CounterVec
	BreakerState   prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time
}

// NewMetrics creates the relay metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Session metrics
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_sessions_active",
				Help: "Number of registered terminal sessions",
			},
		),
		ShellMode: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_shell_mode",
				Help: "Process backend in use (1 for the active mode)",
			},
			[]string{"mode"},
		),
		Spawns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_shell_spawns_total",
				Help: "Shell launch attempts by result",
			},
			[]string{"mode", "result"},
		),
		ShellExits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_shell_exits_total",
				Help: "Shell exits by exit code (signal when killed)",
			},
			[]string{"code"},
		),
		BytesRelayed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_bytes_total",
				Help: "Bytes relayed between clients and shells",
			},
			[]string{"direction"},
		),
		BreakerState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_spawn_breaker_state",
				Help: "Spawn circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "relay_uptime_seconds",
			Help: "Relay uptime in seconds",
		},
		func() float64 { return m.Uptime().Seconds() },
	)

	return m
}

// Uptime returns the time since the metrics were created.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// SetSessionsActive sets the number of registered sessions.
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
}

// SetShellMode marks mode as the active process backend.
func (m *Metrics) SetShellMode(mode shell.Mode) {
	for _, candidate := range []shell.Mode{shell.ModePTY, shell.ModePipe} {
		value := 0.0
		if candidate == mode {
			value = 1
		}
		m.ShellMode.WithLabelValues(string(candidate)).Set(value)
	}
}

// SetBreakerState records a spawn breaker transition.
func (m *Metrics) SetBreakerState(state resilience.State) {
	m.BreakerState.Set(float64(state))
}

// SpawnResult records the outcome of one shell launch.
func (m *Metrics) SpawnResult(mode shell.Mode, err error) {
	m.Spawns.WithLabelValues(string(mode), spawnResult(err)).Inc()
}

// InputBytes records bytes written to a shell.
func (m *Metrics) InputBytes(n int) {
	m.BytesRelayed.WithLabelValues("in").Add(float64(n))
}

// OutputBytes records bytes read from a shell.
func (m *Metrics) OutputBytes(n int) {
	m.BytesRelayed.WithLabelValues("out").Add(float64(n))
}

// ShellExited records a shell exit. A nil code means the shell was killed by a signal.
func (m *Metrics) ShellExited(code *int) {
	label := "signal"
	if code != nil {
		label = strconv.Itoa(*code)
	}
	m.ShellExits.WithLabelValues(label).Inc()
}

func spawnResult(err error) string {
	switch {
	case err == nil:
		return SpawnSuccess
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return SpawnCircuitOpen
	case shell.IsRequestError(err):
		return SpawnRequestError
	default:
		return SpawnFailure
	}
}
