package shell

import (
	"fmt"

	"github.com/creack/pty"
	"go.uber.org/zap"
)

// ProbePTY reports whether the host can allocate a pseudo-terminal pair.
func ProbePTY() error {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return err
	}
	_ = tty.Close()
	return ptmx.Close()
}

// Select picks the spawner for the requested mode. It runs once at startup:
// auto prefers a pty and falls back to pipes, pty fails if none can be opened.
func Select(mode Mode, opts Options, logger *zap.Logger) (Spawner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch mode {
	case ModePipe:
		logger.Info("Shell mode forced to pipe")
		return NewPipeSpawner(opts), nil
	case ModePTY:
		if err := ProbePTY(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPTYUnavailable, err)
		}
		logger.Info("Shell mode pty")
		return NewPTYSpawner(opts), nil
	case ModeAuto, "":
		if err := ProbePTY(); err != nil {
			logger.Warn("Pseudo-terminal unavailable, falling back to pipe mode", zap.Error(err))
			return NewPipeSpawner(opts), nil
		}
		logger.Info("Shell mode pty (auto-detected)")
		return NewPTYSpawner(opts), nil
	default:
		return nil, fmt.Errorf("unknown shell mode %q", mode)
	}
}
