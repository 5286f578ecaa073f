package session

import (
	"time"

	"github.com/davidthedutch/vibe-control-panel/relay/internal/domain/registry"
)

// Info is a point-in-time view of a session for diagnostics.
type Info struct {
	ID           registry.ID `json:"id"`
	ConnectionID string      `json:"connection_id"`
	State        string      `json:"state"`
	Cols         int         `json:"cols,omitempty"`
	Rows         int         `json:"rows,omitempty"`
	Cwd          string      `json:"cwd,omitempty"`
	Pid          int         `json:"pid,omitempty"`
	Mode         string      `json:"mode,omitempty"`
	ExitCode     *int        `json:"exit_code,omitempty"`
	RemoteAddr   string      `json:"remote_addr"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		ID:           s.id,
		ConnectionID: s.connectionID,
		State:        s.state.String(),
		Cols:         s.cols,
		Rows:         s.rows,
		Cwd:          s.cwd,
		Pid:          s.pid,
		ExitCode:     s.exitCode,
		RemoteAddr:   s.remoteAddr,
		CreatedAt:    s.createdAt,
	}
	if s.pid != 0 {
		info.Mode = string(s.spawner.Mode())
	}
	return info
}
