package async

import (
	"context"
	"time"

	"github.com/platinummonkey/folio/pkg/observability"
)

// SafeGo executes fn in a goroutine bounded by timeout. Panics are recovered
// and errors are logged through the logger carried by parentCtx.
//
// Example:
//
//	SafeGo(context.WithoutCancel(ctx), 5*time.Second, "search analytics", func(ctx context.Context) error {
//	    return sink.RecordSearch(ctx, event)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		logger := observability.FromContext(ctx).WithField("task", taskName)
		defer func() {
			if r := recover(); r != nil {
				observability.LogPanic(logger, taskName, r)
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).Warn("background task failed")
		}
	}()
}

