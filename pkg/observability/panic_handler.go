package observability

import (
	"fmt"
	"runtime/debug"
)

// LogPanic logs a recovered panic value with the current stack trace.
// Call it from the deferred function that called recover:
//
//	defer func() {
//		if r := recover(); r != nil {
//			observability.LogPanic(logger, "schema refresh", r)
//		}
//	}()
func LogPanic(logger *Logger, where string, r interface{}) {
	logger.WithFields(map[string]interface{}{
		"panic":   fmt.Sprint(r),
		"stack":   string(debug.Stack()),
		"context": where,
	}).Error("PANIC recovered")
}
