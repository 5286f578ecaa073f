// Package ws is the relay's WebSocket transport.
//
// Each upgraded connection gets a session from the registry and two
// goroutines: a read pump that feeds frames to the session in arrival order
// and a write pump that is the only writer on the socket. When either pump
// stops, the other is stopped and the session is closed, which terminates
// its shell and frees the registry entry.
package ws
