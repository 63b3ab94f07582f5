package util

import (
	"fmt"

	"github.com/real-rm/golog"
)

// LogError logs an error with component and operation context.
// This helper standardizes error logging across the codebase.
//
// Example:
//
//	LogError(logger, "channel", "open connection", err, "session_id", sessionID)
func LogError(logger *golog.Logger, component, operation string, err error, fields ...interface{}) {
	allFields := []interface{}{"error", err, "component", component}
	allFields = append(allFields, fields...)
	logger.Error(fmt.Sprintf("Failed to %s", operation), allFields...)
}
