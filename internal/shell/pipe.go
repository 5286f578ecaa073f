package shell

import (
	"bytes"
	"context"
	"os"
	"sync"
	"syscall"
)

// PipeSpawner starts shells with plain pipes. It is the fallback when the host
// cannot allocate pseudo-terminals: there is no line editing, no job control,
// and resizing does nothing.
type PipeSpawner struct {
	opts Options
}

// NewPipeSpawner creates a pipe-backed spawner.
func NewPipeSpawner(opts Options) *PipeSpawner {
	return &PipeSpawner{opts: opts.withDefaults()}
}

// Mode implements Spawner.
func (s *PipeSpawner) Mode() Mode { return ModePipe }

// Spawn implements Spawner. Geometry is accepted but ignored.
func (s *PipeSpawner) Spawn(ctx context.Context, opts SpawnOptions) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SpawnError{Shell: s.opts.Shell, Dir: opts.Dir, Err: err}
	}

	cmd, err := buildCommand(s.opts, opts.Dir, "TERM=dumb")
	if err != nil {
		return nil, err
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Shell: cmd.Path, Dir: opts.Dir, Err: err}
	}

	// stdout and stderr share one pipe so the client sees combined output.
	r, w, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return nil, &SpawnError{Shell: cmd.Path, Dir: opts.Dir, Err: err}
	}
	cmd.Stdout = w
	cmd.Stderr = w
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return nil, &SpawnError{Shell: cmd.Path, Dir: opts.Dir, Err: err}
	}
	// The child holds its own copy; ours must go for the reader to see EOF.
	_ = w.Close()

	p := newProcess(cmd, ModePipe, s.opts)
	p.in = stdin
	p.out = r
	p.closeIO = sync.OnceFunc(func() {
		_ = stdin.Close()
		_ = r.Close()
	})
	p.hangup = syscall.SIGTERM
	pgid := cmd.Process.Pid
	p.reap = func() { signalPgid(pgid, syscall.SIGKILL) }
	p.translit = translateNewlines
	p.start()

	return p, nil
}

// translateNewlines maps CR and CRLF to LF, the conversion a tty applies with ICRNL.
func translateNewlines(data []byte) []byte {
	if bytes.IndexByte(data, '\r') < 0 {
		return data
	}
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
}
