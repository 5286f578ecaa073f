package session

import "errors"

// Errors reported to the client as error frames.
var (
	ErrNotCreated     = errors.New("terminal not created")
	ErrAlreadyCreated = errors.New("terminal already created")
	ErrExited         = errors.New("terminal has exited")
	ErrInvalidSize    = errors.New("invalid terminal size")
)
