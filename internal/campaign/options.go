package campaign

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the structured logger that mirrors observer log lines.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSleep replaces the inter-message pause. The function must return
// early with ctx.Err() when ctx is done.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// WithClock replaces time.Now for log timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithFileReader replaces os.ReadFile for attachment contents.
func WithFileReader(read func(string) ([]byte, error)) Option {
	return func(r *Runner) {
		if read != nil {
			r.readFile = read
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
