package connection

import (
	"context"
	"time"
)

// SessionFunc runs one session attempt. It should block for the
// session's lifetime and return when the session ends. A nil return
// means the session ran successfully before ending.
type SessionFunc func(ctx context.Context) error

// minSuccessDuration is how long a session must run for its ending to
// count as a success (and reset the backoff) rather than a fast failure.
const minSuccessDuration = 30 * time.Second

// Retry runs op repeatedly until ctx is canceled, delaying restarts
// with the backoff. Sessions that ran for a while reset the backoff
// regardless of how they ended, so a long-lived session followed by a
// failure retries quickly.
func Retry(ctx context.Context, b *Backoff, op SessionFunc) error {
	if b == nil {
		b = NewBackoff()
	}

	for {
		started := time.Now()
		err := op(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err == nil || time.Since(started) >= minSuccessDuration {
			b.Reset()
		}

		timer := time.NewTimer(b.Next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
