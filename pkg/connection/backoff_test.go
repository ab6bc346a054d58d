package connection

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestBackoffProgression(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{
		Initial:    time.Second,
		Max:        8 * time.Second,
		Multiplier: 2.0,
		Jitter:     0, // deterministic
	})

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second, // capped
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("attempt %d: got %v, want %v", i, got, w)
		}
	}
	if b.Attempts() != len(want) {
		t.Errorf("attempts: got %d, want %d", b.Attempts(), len(want))
	}
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Second, Jitter: 0})
	b.Next()
	b.Next()

	b.Reset()
	if b.Attempts() != 0 {
		t.Errorf("attempts after reset: %d", b.Attempts())
	}
	if got := b.Next(); got != time.Second {
		t.Errorf("delay after reset: %v", got)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Second, Jitter: 0.25})

	for i := 0; i < 100; i++ {
		d := b.Peek()
		if d < time.Second || d > 1250*time.Millisecond {
			t.Fatalf("jittered delay %v outside [1s, 1.25s]", d)
		}
	}
}

func TestBackoffPeekDoesNotAdvance(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Second, Jitter: 0})
	b.Peek()
	b.Peek()
	if got := b.Next(); got != time.Second {
		t.Errorf("Peek advanced the backoff: %v", got)
	}
}

func TestBackoffDefaults(t *testing.T) {
	b := NewBackoff()
	if b.Current() != InitialBackoff {
		t.Errorf("initial: %v", b.Current())
	}

	// Zero/invalid config fields fall back to defaults.
	b = NewBackoffWithConfig(BackoffConfig{Multiplier: 0.5, Jitter: -1})
	if b.multiplier != BackoffMultiplier {
		t.Errorf("multiplier: %v", b.multiplier)
	}
	if b.jitter != 0 {
		t.Errorf("jitter: %v", b.jitter)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var runs atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, NewBackoffWithConfig(BackoffConfig{Initial: time.Millisecond, Jitter: 0}),
			func(ctx context.Context) error {
				runs.Add(1)
				return errors.New("session lost")
			})
	}()

	deadline := time.Now().Add(time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if runs.Load() < 3 {
		t.Fatal("expected repeated session attempts")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Retry did not return after cancel")
	}
}

func TestRetrySuccessResetsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Millisecond, Jitter: 0})

	var runs atomic.Int32
	waiting := make(chan struct{})
	go Retry(ctx, b, func(ctx context.Context) error {
		switch n := runs.Add(1); {
		case n < 4:
			return errors.New("session lost")
		case n == 4:
			return nil // clean session end
		default:
			close(waiting)
			<-ctx.Done()
			return ctx.Err()
		}
	})

	select {
	case <-waiting:
	case <-time.After(time.Second):
		t.Fatal("retry loop did not reach the fifth attempt")
	}

	// Three failures, one success, one restart delay: the clean end
	// must have reset the attempt counter before the final Next.
	if got := b.Attempts(); got != 1 {
		t.Errorf("attempts: got %d, want 1 (reset after clean session)", got)
	}
}
