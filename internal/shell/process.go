package shell

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// process holds the lifecycle shared by the pty and pipe backends.
type process struct {
	cmd  *exec.Cmd
	mode Mode

	in       io.Writer
	out      io.Reader
	closeIO  func()
	hangup   syscall.Signal
	resize   func(cols, rows int) error
	translit func([]byte) []byte
	// jobs reports process groups outside the shell's own that Terminate must also signal.
	jobs func() []int
	// reap kills whatever the shell left behind once it has exited.
	reap func()

	killGrace    time.Duration
	drainTimeout time.Duration

	output     chan []byte
	readerDone chan struct{}
	waited     chan struct{}
	done       chan struct{}

	writeMu       sync.Mutex
	exited        atomic.Bool
	exitCode      atomic.Pointer[int]
	terminateOnce sync.Once

	jobMu     sync.Mutex
	jobGroups []int
}

func newProcess(cmd *exec.Cmd, mode Mode, opts Options) *process {
	return &process{
		cmd:          cmd,
		mode:         mode,
		killGrace:    opts.KillGrace,
		drainTimeout: opts.DrainTimeout,
		output:       make(chan []byte, opts.OutputBuffer),
		readerDone:   make(chan struct{}),
		waited:       make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// start launches the reader and waiter goroutines. The command must already be running.
func (p *process) start() {
	go p.readLoop()
	go p.waitLoop()
}

func (p *process) Pid() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

func (p *process) Mode() Mode { return p.mode }

func (p *process) Output() <-chan []byte { return p.output }

func (p *process) Done() <-chan struct{} { return p.done }

func (p *process) ExitCode() *int { return p.exitCode.Load() }

func (p *process) Write(data []byte) error {
	if p.exited.Load() {
		return &WriteError{Pid: p.Pid(), Err: ErrProcessExited}
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.translit != nil {
		data = p.translit(data)
	}
	if _, err := p.in.Write(data); err != nil {
		if p.exited.Load() || errors.Is(err, os.ErrClosed) {
			err = errors.Join(ErrProcessExited, err)
		}
		return &WriteError{Pid: p.Pid(), Err: err}
	}
	return nil
}

func (p *process) Resize(cols, rows int) error {
	if err := ValidateSize(cols, rows); err != nil {
		return err
	}
	if p.resize == nil || p.exited.Load() {
		return nil
	}
	return p.resize(cols, rows)
}

func (p *process) Terminate() {
	p.terminateOnce.Do(func() {
		if p.exited.Load() || p.cmd.Process == nil {
			return
		}

		var groups []int
		if p.jobs != nil {
			groups = p.jobs()
		}
		p.jobMu.Lock()
		p.jobGroups = groups
		p.jobMu.Unlock()

		for _, pgid := range groups {
			signalPgid(pgid, p.hangup)
		}
		if err := signalGroup(p.cmd.Process, p.hangup); err != nil {
			_ = killGroup(p.cmd.Process)
			return
		}
		go func() {
			select {
			case <-p.waited:
			case <-time.After(p.killGrace):
				_ = killGroup(p.cmd.Process)
			}
		}()
	})
}

// reapLeftovers kills the jobs the shell left running. It runs after cmd.Wait
// so the shell itself can no longer spawn new ones.
func (p *process) reapLeftovers() {
	p.jobMu.Lock()
	groups := p.jobGroups
	p.jobMu.Unlock()

	for _, pgid := range groups {
		signalPgid(pgid, syscall.SIGKILL)
	}
	if p.reap != nil {
		p.reap()
	}
}

// readLoop copies output into the channel until the backend reports EOF or an error.
// On Linux a pty master returns EIO once the last slave descriptor closes.
func (p *process) readLoop() {
	defer close(p.readerDone)
	defer close(p.output)

	buf := make([]byte, readBufferSize)
	for {
		n, err := p.out.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			p.output <- chunk
		}
		if err != nil {
			return
		}
	}
}

func (p *process) waitLoop() {
	err := p.cmd.Wait()
	p.exitCode.Store(exitCodeOf(err))
	p.exited.Store(true)
	close(p.waited)
	p.reapLeftovers()

	// A background child can keep the output open after the shell is gone.
	select {
	case <-p.readerDone:
	case <-time.After(p.drainTimeout):
		p.closeIO()
		select {
		case <-p.readerDone:
		case <-time.After(p.drainTimeout):
		}
	}
	p.closeIO()
	close(p.done)
}

// exitCodeOf maps the result of cmd.Wait to an exit code; nil means killed by a signal.
func exitCodeOf(err error) *int {
	code := 0
	if err == nil {
		return &code
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return nil
	}
	code = exitErr.ExitCode()
	if code < 0 {
		return nil
	}
	return &code
}
