/*
Package monitoring provides Prometheus metrics for the relay.

# Metrics

  - relay_http_requests_total, relay_http_request_duration_seconds
  - relay_sessions_active
  - relay_shell_mode{mode}: 1 for the backend chosen at startup
  - relay_shell_spawns_total{mode,result}
  - relay_shell_exits_total{code}
  - relay_bytes_total{direction}
  - relay_spawn_breaker_state
  - relay_ws_connections, relay_ws_messages_total{direction,type}
  - relay_uptime_seconds

Metrics implements session.Metrics, so sessions report spawns and traffic
without depending on Prometheus.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
