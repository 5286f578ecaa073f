// Package server wires the relay together: shell backend selection, the
// spawn circuit breaker, the session registry, the gin router and the
// http.Server lifecycle.
//
// Routes:
//
//	GET /, /terminal   WebSocket terminal sessions (rate limited)
//	GET /health        liveness and shell mode
//	GET /sessions      registered sessions
//	GET /sessions/:id  one session
//	GET /metrics       Prometheus exposition
package server
