package protocol

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// Client message types.
const (
	TypeCreate = "create"
	TypeInput  = "input"
	TypeResize = "resize"
	TypePing   = "ping"
)

var (
	// ErrInvalidJSON is returned when a frame is not a JSON object of the expected shape.
	ErrInvalidJSON = errors.New("invalid message")

	// ErrMissingType is returned when a frame has no type field.
	ErrMissingType = errors.New("missing message type")

	// ErrUnknownType is returned for a type the relay does not handle.
	ErrUnknownType = errors.New("unknown message type")
)

// MalformedMessageError describes a client frame that could not be decoded.
// The connection stays open; the client receives an error frame.
type MalformedMessageError struct {
	Type string
	Err  error
}

func (e *MalformedMessageError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%v: %q", e.Err, e.Type)
	}
	return e.Err.Error()
}

func (e *MalformedMessageError) Unwrap() error { return e.Err }

// Message is a decoded client frame. Fields not used by Type are zero.
type Message struct {
	Type string `json:"type"`
	Cols int    `json:"cols,omitempty"`
	Rows int    `json:"rows,omitempty"`
	Cwd  string `json:"cwd,omitempty"`
	Data string `json:"data,omitempty"`
}

// Decode parses one client frame.
func Decode(raw []byte) (Message, error) {
	var msg Message
	if err := sonic.ConfigStd.Unmarshal(raw, &msg); err != nil {
		return Message{}, &MalformedMessageError{Err: fmt.Errorf("%w: %v", ErrInvalidJSON, err)}
	}

	switch msg.Type {
	case TypeCreate, TypeInput, TypeResize, TypePing:
		return msg, nil
	case "":
		return Message{}, &MalformedMessageError{Err: ErrMissingType}
	default:
		return Message{}, &MalformedMessageError{Type: msg.Type, Err: ErrUnknownType}
	}
}
