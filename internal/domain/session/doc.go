// Package session pairs one client transport with one shell.
//
// A Session starts Idle. A create message spawns the shell and moves it to
// Attached; from then on input and resize are forwarded to the shell and its
// output is pumped back as output frames. When the shell exits the pump sends
// an exit frame and the session becomes Closed, but the transport stays open
// and further requests are answered with error frames. When the transport goes
// away, Close terminates the shell and later messages are dropped.
//
// Handle must be called from a single goroutine so input keeps its order.
// Close may be called from any goroutine, any number of times.
package session
