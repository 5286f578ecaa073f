// Package http serves the relay's read-only diagnostics endpoints.
//
//	GET /health        status, shell mode, session count, uptime
//	GET /sessions      every registered session
//	GET /sessions/:id  one session, 404 when unknown
package http
