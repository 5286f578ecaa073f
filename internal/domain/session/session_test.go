package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/davidthedutch/vibe-control-panel/relay/internal/domain/registry"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/protocol"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/shell"
)

const waitTimeout = 2 * time.Second

// fakeTransport records frames in send order.
type fakeTransport struct {
	mu     sync.Mutex
	frames []protocol.Frame
	closed int
}

func (t *fakeTransport) Send(frame protocol.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed > 0 {
		return errors.New("transport closed")
	}
	t.frames = append(t.frames, frame)
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed++
	return nil
}

func (t *fakeTransport) Frames() []protocol.Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]protocol.Frame(nil), t.frames...)
}

func (t *fakeTransport) waitFrames(tb testing.TB, n int) []protocol.Frame {
	tb.Helper()
	require.Eventually(tb, func() bool { return len(t.Frames()) >= n }, waitTimeout, 5*time.Millisecond)
	return t.Frames()
}

// fakeProcess is a shell driven by the test.
type fakeProcess struct {
	mu         sync.Mutex
	input      []string
	sizes      [][2]int
	terminated int
	writeErr   error
	exitCode   *int

	output   chan []byte
	done     chan struct{}
	exitOnce sync.Once
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{
		output: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

func (p *fakeProcess) Pid() int              { return 4242 }
func (p *fakeProcess) Mode() shell.Mode      { return shell.ModePTY }
func (p *fakeProcess) Output() <-chan []byte { return p.output }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return p.writeErr
	}
	p.input = append(p.input, string(data))
	return nil
}

func (p *fakeProcess) Resize(cols, rows int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sizes = append(p.sizes, [2]int{cols, rows})
	return nil
}

func (p *fakeProcess) ExitCode() *int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

func (p *fakeProcess) Terminate() {
	p.mu.Lock()
	p.terminated++
	p.mu.Unlock()
	p.exit(nil)
}

func (p *fakeProcess) exit(code *int) {
	p.exitOnce.Do(func() {
		p.mu.Lock()
		p.exitCode = code
		p.writeErr = &shell.WriteError{Pid: 4242, Err: shell.ErrProcessExited}
		p.mu.Unlock()
		close(p.output)
		close(p.done)
	})
}

func (p *fakeProcess) Input() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.input...)
}

func (p *fakeProcess) Sizes() [][2]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][2]int(nil), p.sizes...)
}

func (p *fakeProcess) Terminated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

type mockSpawner struct {
	mock.Mock
}

func (m *mockSpawner) Spawn(ctx context.Context, opts shell.SpawnOptions) (shell.Process, error) {
	args := m.Called(ctx, opts)
	proc, _ := args.Get(0).(shell.Process)
	return proc, args.Error(1)
}

func (m *mockSpawner) Mode() shell.Mode { return shell.ModePTY }

type fixture struct {
	session   *Session
	transport *fakeTransport
	spawner   *mockSpawner
	released  chan registry.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		transport: &fakeTransport{},
		spawner:   &mockSpawner{},
		released:  make(chan registry.ID, 4),
	}
	f.session = New(Options{
		ID:           1,
		ConnectionID: "conn_test",
		Transport:    f.transport,
		Spawner:      f.spawner,
		DefaultDir:   "/srv",
		OnRelease:    func(id registry.ID) { f.released <- id },
	})
	return f
}

func (f *fixture) handle(raw string) {
	f.session.Handle(context.Background(), []byte(raw))
}

// attach creates the shell and returns it once the created frame is out.
func (f *fixture) attach(t *testing.T) *fakeProcess {
	t.Helper()
	proc := newFakeProcess()
	f.spawner.On("Spawn", mock.Anything, shell.SpawnOptions{Cols: 80, Rows: 24, Dir: "/tmp"}).Return(proc, nil).Once()
	f.handle(`{"type":"create","cols":80,"rows":24,"cwd":"/tmp"}`)
	frames := f.transport.waitFrames(t, 1)
	require.Equal(t, protocol.Created(1), frames[0])
	return proc
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for channel")
	}
}

func intPtr(v int) *int { return &v }

func TestCreate(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, StateIdle, f.session.State())

	f.attach(t)

	assert.Equal(t, StateAttached, f.session.State())
	f.spawner.AssertExpectations(t)

	info := f.session.Info()
	assert.Equal(t, "attached", info.State)
	assert.Equal(t, 4242, info.Pid)
	assert.Equal(t, "pty", info.Mode)
	assert.Equal(t, "/tmp", info.Cwd)
}

func TestCreateDefaults(t *testing.T) {
	f := newFixture(t)
	proc := newFakeProcess()
	f.spawner.On("Spawn", mock.Anything, shell.SpawnOptions{Cols: 80, Rows: 24, Dir: "/srv"}).Return(proc, nil).Once()

	f.handle(`{"type":"create"}`)

	frames := f.transport.waitFrames(t, 1)
	assert.Equal(t, protocol.Created(1), frames[0])
	f.spawner.AssertExpectations(t)
}

func TestCreateRejectsInvalidSize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"negative cols", `{"type":"create","cols":-1,"rows":24}`},
		{"negative rows", `{"type":"create","cols":80,"rows":-5}`},
		{"too large", `{"type":"create","cols":70000,"rows":24}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.handle(tt.raw)

			frames := f.transport.Frames()
			require.Len(t, frames, 1)
			assert.Equal(t, protocol.Error("invalid terminal size"), frames[0])
			assert.Equal(t, StateIdle, f.session.State())
			f.spawner.AssertNotCalled(t, "Spawn", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateSpawnFailureStaysIdle(t *testing.T) {
	f := newFixture(t)
	spawnErr := &shell.SpawnError{Shell: "/bin/missing", Dir: "/tmp", Err: shell.ErrShellNotFound}
	f.spawner.On("Spawn", mock.Anything, mock.Anything).Return(nil, spawnErr).Once()

	f.handle(`{"type":"create","cols":80,"rows":24,"cwd":"/tmp"}`)

	frames := f.transport.Frames()
	require.Len(t, frames, 1)
	errFrame, ok := frames[0].(protocol.ErrorFrame)
	require.True(t, ok, "expected error frame, got %T", frames[0])
	assert.Contains(t, errFrame.Message, "shell not found")
	assert.Equal(t, StateIdle, f.session.State())

	// a retry may succeed
	f.transport.frames = nil
	f.attach(t)
	assert.Equal(t, StateAttached, f.session.State())
}

func TestCreateTwiceRejected(t *testing.T) {
	f := newFixture(t)
	proc := f.attach(t)

	f.handle(`{"type":"create","cols":80,"rows":24,"cwd":"/tmp"}`)

	frames := f.transport.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, protocol.Error("terminal already created"), frames[1])
	assert.Equal(t, 0, proc.Terminated())
	f.spawner.AssertNumberOfCalls(t, "Spawn", 1)
}

func TestRequestsBeforeCreate(t *testing.T) {
	f := newFixture(t)

	f.handle(`{"type":"input","data":"ls\r"}`)
	f.handle(`{"type":"resize","cols":100,"rows":30}`)

	assert.Equal(t, []protocol.Frame{
		protocol.Error("terminal not created"),
		protocol.Error("terminal not created"),
	}, f.transport.Frames())
	assert.Equal(t, StateIdle, f.session.State())
}

func TestInputAndResizeForwarded(t *testing.T) {
	f := newFixture(t)
	proc := f.attach(t)

	f.handle(`{"type":"input","data":"echo hi\r"}`)
	f.handle(`{"type":"input","data":"ls\r"}`)
	f.handle(`{"type":"resize","cols":120,"rows":40}`)

	assert.Equal(t, []string{"echo hi\r", "ls\r"}, proc.Input())
	assert.Equal(t, [][2]int{{120, 40}}, proc.Sizes())
	assert.Len(t, f.transport.Frames(), 1, "no error frames expected")
	assert.Equal(t, StateAttached, f.session.State())

	info := f.session.Info()
	assert.Equal(t, 120, info.Cols)
	assert.Equal(t, 40, info.Rows)
}

func TestResizeRejectsInvalidSize(t *testing.T) {
	f := newFixture(t)
	proc := f.attach(t)

	f.handle(`{"type":"resize","cols":0,"rows":40}`)
	f.handle(`{"type":"resize","cols":-3,"rows":-3}`)

	frames := f.transport.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, protocol.Error("invalid terminal size"), frames[1])
	assert.Equal(t, protocol.Error("invalid terminal size"), frames[2])
	assert.Empty(t, proc.Sizes())
	assert.Equal(t, StateAttached, f.session.State())
}

func TestOutputRelayedInOrder(t *testing.T) {
	f := newFixture(t)
	proc := f.attach(t)

	for _, chunk := range []string{"one\r\n", "two\r\n", "three\r\n"} {
		proc.output <- []byte(chunk)
	}

	frames := f.transport.waitFrames(t, 4)
	assert.Equal(t, []protocol.Frame{
		protocol.Created(1),
		protocol.Output("one\r\n"),
		protocol.Output("two\r\n"),
		protocol.Output("three\r\n"),
	}, frames)
}

func TestOutputKeepsUTF8SequencesWhole(t *testing.T) {
	f := newFixture(t)
	proc := f.attach(t)

	check := []byte("✓")
	proc.output <- append([]byte("ok "), check[:1]...)
	proc.output <- check[1:]

	frames := f.transport.waitFrames(t, 3)
	assert.Equal(t, protocol.Output("ok "), frames[1])
	assert.Equal(t, protocol.Output("✓"), frames[2])
}

func TestShellExit(t *testing.T) {
	f := newFixture(t)
	proc := f.attach(t)

	proc.output <- []byte("bye\r\n")
	proc.exit(intPtr(0))
	waitClosed(t, f.session.Done())

	frames := f.transport.Frames()
	assert.Equal(t, []protocol.Frame{
		protocol.Created(1),
		protocol.Output("bye\r\n"),
		protocol.Exit(intPtr(0)),
	}, frames)
	assert.Equal(t, StateClosed, f.session.State())
	assert.Equal(t, registry.ID(1), <-f.released)

	// the transport stays open and answers with errors
	f.handle(`{"type":"input","data":"ls\r"}`)
	f.handle(`{"type":"resize","cols":100,"rows":30}`)
	f.handle(`{"type":"create"}`)

	frames = f.transport.Frames()
	require.Len(t, frames, 6)
	for _, frame := range frames[3:] {
		assert.Equal(t, protocol.Error("terminal has exited"), frame)
	}
	assert.Equal(t, 0, f.transport.closed)

	info := f.session.Info()
	require.NotNil(t, info.ExitCode)
	assert.Equal(t, 0, *info.ExitCode)
}

func TestShellKilledBySignal(t *testing.T) {
	f := newFixture(t)
	proc := f.attach(t)

	proc.exit(nil)
	waitClosed(t, f.session.Done())

	frames := f.transport.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, protocol.Exit(nil), frames[1])
}

func TestWriteAfterExitBeforePump(t *testing.T) {
	f := newFixture(t)
	proc := f.attach(t)

	proc.mu.Lock()
	proc.writeErr = &shell.WriteError{Pid: 4242, Err: shell.ErrProcessExited}
	proc.mu.Unlock()

	f.handle(`{"type":"input","data":"ls\r"}`)

	frames := f.transport.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, protocol.Error("terminal has exited"), frames[1])
}

func TestCloseTerminatesShell(t *testing.T) {
	f := newFixture(t)
	proc := f.attach(t)

	f.session.Close()
	f.session.Close()
	waitClosed(t, f.session.Done())

	assert.Equal(t, 1, proc.Terminated())
	assert.Equal(t, 1, f.transport.closed)
	assert.Equal(t, StateClosed, f.session.State())
	assert.Equal(t, registry.ID(1), <-f.released)
	assert.Empty(t, f.released, "release must run once")

	// no exit frame after a disconnect, and later messages are dropped
	f.handle(`{"type":"input","data":"ls\r"}`)
	f.handle(`{"type":"ping"}`)
	assert.Equal(t, []protocol.Frame{protocol.Created(1)}, f.transport.Frames())
}

func TestCloseDuringSpawn(t *testing.T) {
	tests := []struct {
		name     string
		proc     *fakeProcess
		spawnErr error
	}{
		{name: "shell started", proc: newFakeProcess()},
		{name: "spawn failed", spawnErr: &shell.SpawnError{Shell: "/bin/sh", Err: context.Canceled}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			spawning := make(chan struct{})
			unblock := make(chan struct{})
			var proc shell.Process
			if tt.proc != nil {
				proc = tt.proc
			}
			f.spawner.On("Spawn", mock.Anything, mock.Anything).
				Run(func(mock.Arguments) {
					close(spawning)
					<-unblock
				}).
				Return(proc, tt.spawnErr).Once()

			handled := make(chan struct{})
			go func() {
				defer close(handled)
				f.handle(`{"type":"create"}`)
			}()
			waitClosed(t, spawning)

			// neither waits for the spawn to finish
			assert.Equal(t, "idle", f.session.Info().State)
			f.session.Close()
			assert.Equal(t, registry.ID(1), <-f.released)

			select {
			case <-f.session.Done():
				t.Fatal("done before the spawn returned")
			default:
			}

			close(unblock)
			waitClosed(t, handled)
			waitClosed(t, f.session.Done())

			assert.Equal(t, StateClosed, f.session.State())
			assert.Empty(t, f.transport.Frames())
			if tt.proc != nil {
				assert.Equal(t, 1, tt.proc.Terminated())
			}
		})
	}
}

func TestCloseAfterExitReleasesOnce(t *testing.T) {
	f := newFixture(t)
	proc := f.attach(t)

	proc.exit(intPtr(3))
	waitClosed(t, f.session.Done())
	f.session.Close()

	assert.Equal(t, registry.ID(1), <-f.released)
	assert.Empty(t, f.released)
	assert.Equal(t, 0, proc.Terminated())

	exits := 0
	for _, frame := range f.transport.Frames() {
		if frame.FrameType() == protocol.TypeExit {
			exits++
		}
	}
	assert.Equal(t, 1, exits)
}

func TestCloseIdle(t *testing.T) {
	f := newFixture(t)

	f.session.Close()
	waitClosed(t, f.session.Done())

	assert.Equal(t, StateClosed, f.session.State())
	assert.Equal(t, registry.ID(1), <-f.released)
	assert.Empty(t, f.transport.Frames())

	f.handle(`{"type":"create"}`)
	f.spawner.AssertNotCalled(t, "Spawn", mock.Anything, mock.Anything)
}

func TestPing(t *testing.T) {
	f := newFixture(t)
	f.handle(`{"type":"ping"}`)
	assert.Equal(t, []protocol.Frame{protocol.Pong()}, f.transport.Frames())
}

func TestMalformedMessages(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"unknown type", `{"type":"launch"}`, `unknown message type: "launch"`},
		{"missing type", `{"cols":80}`, "missing message type"},
		{"not json", `not json`, "invalid message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.handle(tt.raw)

			frames := f.transport.Frames()
			require.Len(t, frames, 1)
			errFrame, ok := frames[0].(protocol.ErrorFrame)
			require.True(t, ok)
			assert.Contains(t, errFrame.Message, tt.want)
			assert.Equal(t, StateIdle, f.session.State())
		})
	}
}

type recordingMetrics struct {
	mu       sync.Mutex
	spawns   []error
	inBytes  int
	outBytes int
	exits    int
}

func (m *recordingMetrics) SpawnResult(_ shell.Mode, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spawns = append(m.spawns, err)
}

func (m *recordingMetrics) InputBytes(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inBytes += n
}

func (m *recordingMetrics) OutputBytes(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outBytes += n
}

func (m *recordingMetrics) ShellExited(*int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exits++
}

func TestMetrics(t *testing.T) {
	metrics := &recordingMetrics{}
	transport := &fakeTransport{}
	spawner := &mockSpawner{}
	proc := newFakeProcess()
	spawner.On("Spawn", mock.Anything, mock.Anything).Return(proc, nil)

	s := New(Options{ID: 7, Transport: transport, Spawner: spawner, Metrics: metrics})
	s.Handle(context.Background(), []byte(`{"type":"create"}`))
	s.Handle(context.Background(), []byte(`{"type":"input","data":"abc"}`))
	proc.output <- []byte("hello")
	proc.exit(intPtr(0))
	waitClosed(t, s.Done())

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	assert.Equal(t, []error{nil}, metrics.spawns)
	assert.Equal(t, 3, metrics.inBytes)
	assert.Equal(t, 5, metrics.outBytes)
	assert.Equal(t, 1, metrics.exits)
}
