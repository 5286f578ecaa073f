/*
Package resilience provides a circuit breaker used to guard shell launches.

# Overview

When the host keeps refusing to start shells (process table full, shell binary
removed, fork failing), every create request would otherwise pay the full cost
of a failing fork/exec. The breaker trips after a run of consecutive failures
and rejects launches immediately until its timeout elapses, then lets a
limited number of trial launches through.

# Usage

	breaker := resilience.New("shell-spawn", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || shell.IsRequestError(err)
		},
	})

	err := breaker.Execute(func() error {
		proc, err = spawner.Spawn(ctx, opts)
		return err
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
