package shell

import (
	"context"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// PTYSpawner starts shells attached to a pseudo-terminal.
type PTYSpawner struct {
	opts Options
}

// NewPTYSpawner creates a pty-backed spawner.
func NewPTYSpawner(opts Options) *PTYSpawner {
	return &PTYSpawner{opts: opts.withDefaults()}
}

// Mode implements Spawner.
func (s *PTYSpawner) Mode() Mode { return ModePTY }

// Spawn implements Spawner.
func (s *PTYSpawner) Spawn(ctx context.Context, opts SpawnOptions) (Process, error) {
	if err := ValidateSize(opts.Cols, opts.Rows); err != nil {
		return nil, &SpawnError{Shell: s.opts.Shell, Dir: opts.Dir, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &SpawnError{Shell: s.opts.Shell, Dir: opts.Dir, Err: err}
	}

	cmd, err := buildCommand(s.opts, opts.Dir, "TERM=xterm-256color")
	if err != nil {
		return nil, err
	}

	// StartWithSize puts the shell in its own session with the pty as controlling terminal.
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Cols: uint16(opts.Cols),
		Rows: uint16(opts.Rows),
	})
	if err != nil {
		return nil, &SpawnError{Shell: cmd.Path, Dir: opts.Dir, Err: err}
	}

	p := newProcess(cmd, ModePTY, s.opts)
	p.in = ptmx
	p.out = ptmx
	p.closeIO = sync.OnceFunc(func() { _ = ptmx.Close() })
	p.hangup = syscall.SIGHUP
	// The shell leads its own session; jobs it starts get groups of their own.
	sid := cmd.Process.Pid
	p.jobs = func() []int {
		if pgid := foregroundGroup(ptmx); pgid > 0 && pgid != sid {
			return []int{pgid}
		}
		return nil
	}
	p.reap = func() { killSession(sid) }
	p.resize = func(cols, rows int) error {
		return pty.Setsize(ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	}
	p.start()

	return p, nil
}
