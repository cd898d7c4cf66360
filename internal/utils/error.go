package utils

import (
	"fmt"
	"runtime/debug"
)

// GetStackWithError pairs an error with the current stack trace.
func GetStackWithError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w\nStack trace:\n%s", err, debug.Stack())
}
