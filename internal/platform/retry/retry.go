// Package retry retries startup connections to backing services.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Do calls fn up to attempts times, doubling delay between failures. It
// stops early when ctx is done and returns the last error.
func Do(ctx context.Context, name string, attempts int, delay time.Duration, fn func(ctx context.Context) error) error {
	attempts = max(attempts, 1)
	var err error
	for i := range attempts {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		slog.Warn("connection attempt failed, retrying",
			"service", name,
			"attempt", i+1,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w (last error: %v)", name, ctx.Err(), err)
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
