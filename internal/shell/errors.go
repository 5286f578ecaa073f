package shell

import (
	"errors"
	"fmt"
)

// Sentinel errors for the shell package.
var (
	// ErrShellNotFound is returned when the shell executable cannot be located.
	ErrShellNotFound = errors.New("shell not found")

	// ErrInvalidWorkDir is returned when the requested working directory is unusable.
	ErrInvalidWorkDir = errors.New("invalid working directory")

	// ErrInvalidSize is returned when terminal dimensions are out of range.
	ErrInvalidSize = errors.New("invalid terminal size")

	// ErrProcessExited is returned when writing to a process that has already exited.
	ErrProcessExited = errors.New("process has exited")

	// ErrPTYUnavailable is returned when pty mode is forced but the host cannot open one.
	ErrPTYUnavailable = errors.New("pseudo-terminal unavailable")
)

// SpawnError indicates the OS refused to start the shell.
type SpawnError struct {
	Shell string
	Dir   string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start shell %q in %q: %v", e.Shell, e.Dir, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// WriteError indicates input could not be delivered to the shell.
type WriteError struct {
	Pid int
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write to shell (pid %d): %v", e.Pid, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
