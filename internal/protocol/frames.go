package protocol

import "github.com/bytedance/sonic"

// Relay frame types.
const (
	TypeCreated = "created"
	TypeOutput  = "output"
	TypeExit    = "exit"
	TypeError   = "error"
	TypePong    = "pong"
)

// Frame is a message sent from the relay to the client.
type Frame interface {
	FrameType() string
}

// CreatedFrame confirms that a shell is attached.
type CreatedFrame struct {
	Type       string `json:"type"`
	TerminalID int64  `json:"terminalId"`
}

// OutputFrame carries shell output.
type OutputFrame struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// ExitFrame reports shell termination. ExitCode is null when the shell was
// killed by a signal.
type ExitFrame struct {
	Type     string `json:"type"`
	ExitCode *int   `json:"exitCode"`
}

// ErrorFrame reports a failure. The session may still be usable.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PongFrame answers a ping.
type PongFrame struct {
	Type string `json:"type"`
}

func (CreatedFrame) FrameType() string { return TypeCreated }
func (OutputFrame) FrameType() string  { return TypeOutput }
func (ExitFrame) FrameType() string    { return TypeExit }
func (ErrorFrame) FrameType() string   { return TypeError }
func (PongFrame) FrameType() string    { return TypePong }

func Created(terminalID int64) CreatedFrame {
	return CreatedFrame{Type: TypeCreated, TerminalID: terminalID}
}

func Output(data string) OutputFrame {
	return OutputFrame{Type: TypeOutput, Data: data}
}

func Exit(code *int) ExitFrame {
	return ExitFrame{Type: TypeExit, ExitCode: code}
}

func Error(message string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Message: message}
}

func Pong() PongFrame {
	return PongFrame{Type: TypePong}
}

// Encode serializes a frame to JSON.
func Encode(f Frame) ([]byte, error) {
	return sonic.ConfigStd.Marshal(f)
}
