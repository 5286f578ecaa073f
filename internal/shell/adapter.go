package shell

import (
	"context"
	"fmt"
	"time"
)

// Mode identifies which process backend a Spawner uses.
type Mode string

const (
	// ModeAuto probes for pty support and falls back to pipes.
	ModeAuto Mode = "auto"
	// ModePTY runs shells on a pseudo-terminal.
	ModePTY Mode = "pty"
	// ModePipe runs shells with plain stdin/stdout pipes.
	ModePipe Mode = "pipe"
)

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAuto, ModePTY, ModePipe:
		return Mode(s), nil
	case "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("unknown shell mode %q (want auto, pty or pipe)", s)
	}
}

const (
	// DefaultCols is used when a create request omits the column count.
	DefaultCols = 80
	// DefaultRows is used when a create request omits the row count.
	DefaultRows = 24
	// MaxDimension is the largest value a terminal dimension may take.
	MaxDimension = 65535

	defaultKillGrace    = 2 * time.Second
	defaultDrainTimeout = 250 * time.Millisecond
	defaultOutputBuffer = 64
	readBufferSize      = 32 * 1024
)

// SpawnOptions describes one shell launch.
type SpawnOptions struct {
	Cols int
	Rows int
	Dir  string
}

// Options configures a Spawner.
type Options struct {
	// Shell is the operator-configured shell. Empty means resolve from the host.
	Shell string

	// Args are passed to the shell.
	Args []string

	// Env is appended to the inherited environment.
	Env []string

	// KillGrace is how long Terminate waits before escalating to SIGKILL.
	KillGrace time.Duration

	// DrainTimeout bounds how long output is read after the shell exits.
	DrainTimeout time.Duration

	// OutputBuffer is the number of chunks buffered between reader and consumer.
	OutputBuffer int
}

func (o Options) withDefaults() Options {
	if o.KillGrace <= 0 {
		o.KillGrace = defaultKillGrace
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = defaultDrainTimeout
	}
	if o.OutputBuffer <= 0 {
		o.OutputBuffer = defaultOutputBuffer
	}
	return o
}

// Spawner starts interactive shells.
type Spawner interface {
	// Spawn starts a shell. Failures are returned as *SpawnError.
	Spawn(ctx context.Context, opts SpawnOptions) (Process, error)

	// Mode reports the backend in use.
	Mode() Mode
}

// Process is a running shell.
//
// Output delivers chunks in the order the shell produced them and is closed
// after the last chunk. Done is closed once the exit status is known and the
// output has been drained, so no chunk is delivered after Done.
type Process interface {
	Pid() int
	Mode() Mode

	// Write sends bytes to the shell's input. Failures are *WriteError.
	Write(p []byte) error

	// Resize changes the terminal geometry. It is a no-op for pipe-backed shells.
	Resize(cols, rows int) error

	Output() <-chan []byte
	Done() <-chan struct{}

	// ExitCode is nil while running and when the shell was killed by a signal.
	ExitCode() *int

	// Terminate asks the shell to stop and escalates to SIGKILL after a grace
	// period. Calling it more than once, or after exit, does nothing.
	Terminate()
}

// ValidateSize reports whether cols and rows are usable terminal dimensions.
func ValidateSize(cols, rows int) error {
	if cols < 1 || rows < 1 || cols > MaxDimension || rows > MaxDimension {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, cols, rows)
	}
	return nil
}
