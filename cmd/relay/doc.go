// Command relay serves interactive shells to browser terminals over
// WebSocket.
//
// Usage:
//
//	relay [-port 3001] [-host 0.0.0.0] [-shell /bin/bash] [-mode auto|pty|pipe] [-dev]
//
// All settings can also be given as RELAY_* environment variables; flags win.
package main
