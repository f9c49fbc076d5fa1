package async

import (
	"context"
	"time"

	"github.com/platinummonkey/omicron/pkg/observability"
)

// Run calls fn on the current goroutine and converts a panic into an error.
func Run(ctx context.Context, logger *observability.Logger, taskName string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = observability.LogPanic(logger, taskName, r)
		}
	}()
	return fn(ctx)
}

// Every calls fn once immediately and then on every tick of interval until
// ctx is done. A panic in one call is logged and does not stop the loop.
func Every(ctx context.Context, logger *observability.Logger, interval time.Duration, taskName string, fn func(context.Context)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			_ = Run(ctx, logger, taskName, func(ctx context.Context) error {
				fn(ctx)
				return nil
			})
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return done
}
