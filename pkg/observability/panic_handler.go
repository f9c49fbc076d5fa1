package observability

import (
	"fmt"
	"runtime/debug"
)

// LogPanic logs a recovered panic value with its stack trace and returns it
// as an error. Call it with the result of recover().
func LogPanic(logger *Logger, where string, r interface{}) error {
	logger.WithFields(map[string]interface{}{
		"panic":   fmt.Sprint(r),
		"stack":   string(debug.Stack()),
		"context": where,
	}).Error("PANIC recovered")

	if err, ok := r.(error); ok {
		return fmt.Errorf("panic in %s: %w", where, err)
	}
	return fmt.Errorf("panic in %s: %v", where, r)
}
