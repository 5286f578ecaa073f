package shell

import (
	"context"
	"errors"

	"github.com/davidthedutch/vibe-control-panel/relay/internal/infrastructure/resilience"
)

// guardedSpawner fails fast while the host keeps refusing to start shells.
type guardedSpawner struct {
	Spawner
	breaker *resilience.Breaker
}

// Guard wraps a Spawner with a circuit breaker. Failures caused by the request
// itself (bad working directory or size) do not count against the breaker.
func Guard(s Spawner, breaker *resilience.Breaker) Spawner {
	return &guardedSpawner{Spawner: s, breaker: breaker}
}

func (g *guardedSpawner) Spawn(ctx context.Context, opts SpawnOptions) (Process, error) {
	var proc Process
	err := g.breaker.Execute(func() error {
		var err error
		proc, err = g.Spawner.Spawn(ctx, opts)
		return err
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			return nil, &SpawnError{Dir: opts.Dir, Err: err}
		}
		return nil, err
	}
	return proc, nil
}

// IsRequestError reports whether a spawn failure was caused by the caller's
// options rather than the host.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrInvalidWorkDir) || errors.Is(err, ErrInvalidSize)
}
