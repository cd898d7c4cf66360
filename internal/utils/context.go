package utils

import (
	"context"
	"fmt"
	"time"
)

// RunWithTimeout executes a batch function under a deadline. When the
// deadline passes, the context is canceled and a timeout error returned.
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errChan := make(chan error, 1)

	go func() {
		errChan <- fn(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return fmt.Errorf("batch process timed out after %v", timeout)
	}
}
