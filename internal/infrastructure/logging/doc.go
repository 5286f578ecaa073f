// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output (RELAY_LOG_DEV=true)
//
// Components take a named child logger and attach terminal_id and
// connection_id fields so one session's lines can be followed.
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info"})
//	wsLog := logger.Component("ws")
//	wsLog.Info("Client connected", zap.String("connection_id", connID))
package logging
