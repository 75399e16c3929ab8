package harness

import (
	"context"
	"time"
)

// Condition is probed by Poll. Returning an error stops polling immediately.
type Condition func(ctx context.Context) (done bool, err error)

// Poll probes cond right away and then at a fixed interval until it reports
// done, fails, ctx ends, or timeout elapses. The last probe happens at the
// deadline, so a timeout is reported no earlier than timeout and no later
// than timeout plus one interval (plus the cost of a probe).
// It returns how long it waited.
func Poll(ctx context.Context, timeout, interval time.Duration, cond Condition) (time.Duration, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	start := time.Now()
	deadline := start.Add(timeout)

	timer := time.NewTimer(interval)
	timer.Stop()
	defer timer.Stop()

	for {
		done, err := cond(ctx)
		if err != nil {
			return time.Since(start), err
		}
		if done {
			return time.Since(start), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return time.Since(start), ErrPollTimeout
		}
		timer.Reset(min(interval, remaining))
		select {
		case <-ctx.Done():
			return time.Since(start), ctx.Err()
		case <-timer.C:
		}
	}
}
