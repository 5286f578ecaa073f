// Package middleware holds the gin middleware shared by the relay's routes:
// CORS for browser clients and per-IP rate limiting of terminal upgrades.
package middleware
