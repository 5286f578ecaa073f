package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/davidthedutch/vibe-control-panel/relay/internal/domain/registry"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/protocol"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/shell"
)

// State is the lifecycle stage of a session.
type State int32

const (
	StateIdle State = iota
	StateAttached
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttached:
		return "attached"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport delivers frames to the client.
type Transport interface {
	// Send queues a frame. It fails once the transport is closed.
	Send(frame protocol.Frame) error

	// Close shuts the transport down. It must be safe to call more than once.
	Close() error
}

// Metrics receives session events. All methods must be safe for concurrent use.
type Metrics interface {
	SpawnResult(mode shell.Mode, err error)
	InputBytes(n int)
	OutputBytes(n int)
	ShellExited(code *int)
}

// Options configures a new Session.
type Options struct {
	ID           registry.ID
	ConnectionID string
	RemoteAddr   string

	Transport Transport
	Spawner   shell.Spawner

	// DefaultDir is used when create carries no cwd.
	DefaultDir string

	Logger  *zap.Logger
	Metrics Metrics

	// OnRelease runs once, when the shell has exited or the session is closed.
	OnRelease func(id registry.ID)
}

// Session is one client connection and the shell it drives.
type Session struct {
	id           registry.ID
	connectionID string
	remoteAddr   string
	createdAt    time.Time

	transport  Transport
	spawner    shell.Spawner
	defaultDir string
	logger     *zap.Logger
	metrics    Metrics
	onRelease  func(id registry.ID)

	mu           sync.Mutex
	state        State
	disconnected bool
	spawning     bool
	proc         shell.Process
	pid          int
	cols, rows   int
	cwd          string
	exitCode     *int

	closeOnce   sync.Once
	releaseOnce sync.Once
	doneOnce    sync.Once
	done        chan struct{}
}

// New creates an Idle session. No shell is started until the client sends create.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &Session{
		id:           opts.ID,
		connectionID: opts.ConnectionID,
		remoteAddr:   opts.RemoteAddr,
		createdAt:    time.Now(),
		transport:    opts.Transport,
		spawner:      opts.Spawner,
		defaultDir:   opts.DefaultDir,
		logger: logger.With(
			zap.Int64("terminal_id", int64(opts.ID)),
			zap.String("connection_id", opts.ConnectionID),
		),
		metrics:   metrics,
		onRelease: opts.OnRelease,
		state:     StateIdle,
		done:      make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() registry.ID { return s.id }

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session holds no running shell and never will again.
func (s *Session) Done() <-chan struct{} { return s.done }

// Handle processes one raw client frame.
func (s *Session) Handle(ctx context.Context, raw []byte) {
	if s.isDisconnected() {
		return
	}

	msg, err := protocol.Decode(raw)
	if err != nil {
		s.logger.Debug("Malformed message", zap.Error(err))
		s.sendError(err)
		return
	}

	switch msg.Type {
	case protocol.TypeCreate:
		s.create(ctx, msg)
	case protocol.TypeInput:
		s.input(msg.Data)
	case protocol.TypeResize:
		s.resize(msg.Cols, msg.Rows)
	case protocol.TypePing:
		s.send(protocol.Pong())
	}
}

func (s *Session) create(ctx context.Context, msg protocol.Message) {
	cols, rows := msg.Cols, msg.Rows
	if cols == 0 {
		cols = shell.DefaultCols
	}
	if rows == 0 {
		rows = shell.DefaultRows
	}
	if err := shell.ValidateSize(cols, rows); err != nil {
		s.sendError(ErrInvalidSize)
		return
	}

	dir := msg.Cwd
	if dir == "" {
		dir = s.defaultDir
	}

	s.mu.Lock()
	switch {
	case s.disconnected:
		s.mu.Unlock()
		return
	case s.state == StateAttached || s.spawning:
		s.mu.Unlock()
		s.sendError(ErrAlreadyCreated)
		return
	case s.state == StateClosed:
		s.mu.Unlock()
		s.sendError(ErrExited)
		return
	}
	s.spawning = true
	s.mu.Unlock()

	// Spawn runs unlocked so Info and Close are not held up by fork/exec.
	proc, err := s.spawner.Spawn(ctx, shell.SpawnOptions{Cols: cols, Rows: rows, Dir: dir})
	s.metrics.SpawnResult(s.spawner.Mode(), err)

	s.mu.Lock()
	s.spawning = false
	disconnected := s.disconnected
	if err == nil {
		s.proc = proc
		s.pid = proc.Pid()
		s.cols, s.rows, s.cwd = cols, rows, dir
		if !disconnected {
			s.state = StateAttached
		}
	}
	s.mu.Unlock()

	switch {
	case err != nil && disconnected:
		// Close left Done to us.
		s.markDone()
		return
	case err != nil:
		s.logger.Warn("Failed to start shell", zap.String("cwd", dir), zap.Error(err))
		s.sendError(err)
		return
	case disconnected:
		// The client went away mid-spawn; the pump still reaps the shell.
		s.logger.Debug("Terminating shell started after disconnect", zap.Int("pid", proc.Pid()))
		proc.Terminate()
		go s.pump(proc)
		return
	}

	s.logger.Info("Shell started",
		zap.Int("pid", proc.Pid()),
		zap.String("mode", string(proc.Mode())),
		zap.String("cwd", dir),
		zap.Int("cols", cols),
		zap.Int("rows", rows))

	s.send(protocol.Created(int64(s.id)))
	go s.pump(proc)
}

func (s *Session) input(data string) {
	proc, err := s.attached()
	if err != nil {
		s.sendError(err)
		return
	}

	if err := proc.Write([]byte(data)); err != nil {
		if errors.Is(err, shell.ErrProcessExited) {
			s.sendError(ErrExited)
			return
		}
		s.logger.Warn("Failed to write to shell", zap.Error(err))
		s.sendError(err)
		return
	}
	s.metrics.InputBytes(len(data))
}

func (s *Session) resize(cols, rows int) {
	proc, err := s.attached()
	if err != nil {
		s.sendError(err)
		return
	}
	if err := shell.ValidateSize(cols, rows); err != nil {
		s.sendError(ErrInvalidSize)
		return
	}

	if err := proc.Resize(cols, rows); err != nil {
		s.logger.Warn("Failed to resize shell", zap.Int("cols", cols), zap.Int("rows", rows), zap.Error(err))
		s.sendError(err)
		return
	}

	s.mu.Lock()
	s.cols, s.rows = cols, rows
	s.mu.Unlock()
}

// attached returns the running shell, or the error to report to the client.
func (s *Session) attached() (shell.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		return nil, ErrNotCreated
	case StateClosed:
		return nil, ErrExited
	default:
		return s.proc, nil
	}
}

// pump relays shell output until the shell is gone, then reports the exit.
func (s *Session) pump(proc shell.Process) {
	defer s.markDone()

	var decoder protocol.OutputDecoder
	output := proc.Output()

relay:
	for {
		select {
		case chunk, ok := <-output:
			if !ok {
				break relay
			}
			s.relayOutput(decoder.Decode(chunk), len(chunk))
		case <-proc.Done():
			// Done can win the race against buffered chunks.
			for {
				select {
				case chunk, ok := <-output:
					if !ok {
						break relay
					}
					s.relayOutput(decoder.Decode(chunk), len(chunk))
				default:
					break relay
				}
			}
		}
	}
	<-proc.Done()

	if tail := decoder.Flush(); tail != "" {
		s.relayOutput(tail, 0)
	}
	s.finish(proc)
}

func (s *Session) relayOutput(data string, n int) {
	if n > 0 {
		s.metrics.OutputBytes(n)
	}
	if data == "" || s.isDisconnected() {
		return
	}
	s.send(protocol.Output(data))
}

// finish moves the session to Closed after the shell exits.
func (s *Session) finish(proc shell.Process) {
	code := proc.ExitCode()

	s.mu.Lock()
	s.state = StateClosed
	s.proc = nil
	s.exitCode = code
	disconnected := s.disconnected
	s.mu.Unlock()

	s.metrics.ShellExited(code)
	if code != nil {
		s.logger.Info("Shell exited", zap.Int("exit_code", *code))
	} else {
		s.logger.Info("Shell terminated by signal")
	}

	if !disconnected {
		s.send(protocol.Exit(code))
	}
	s.release()
}

// Close terminates the shell and the transport. It never sends frames.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.disconnected = true
		proc := s.proc
		spawning := s.spawning
		if s.state == StateIdle {
			s.state = StateClosed
		}
		s.mu.Unlock()

		switch {
		case proc != nil:
			s.logger.Debug("Terminating shell", zap.Int("pid", proc.Pid()))
			proc.Terminate()
		case !spawning:
			s.markDone()
		}

		if err := s.transport.Close(); err != nil {
			s.logger.Debug("Transport close failed", zap.Error(err))
		}
		s.release()
	})
}

func (s *Session) release() {
	s.releaseOnce.Do(func() {
		if s.onRelease != nil {
			s.onRelease(s.id)
		}
	})
}

func (s *Session) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) isDisconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

func (s *Session) send(frame protocol.Frame) {
	if err := s.transport.Send(frame); err != nil {
		s.logger.Debug("Dropped frame", zap.String("type", frame.FrameType()), zap.Error(err))
	}
}

func (s *Session) sendError(err error) {
	s.send(protocol.Error(err.Error()))
}

type nopMetrics struct{}

func (nopMetrics) SpawnResult(shell.Mode, error) {}
func (nopMetrics) InputBytes(int)                {}
func (nopMetrics) OutputBytes(int)               {}
func (nopMetrics) ShellExited(*int)              {}
