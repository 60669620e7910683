package job

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError marks one bounded network operation that exceeded its
// deadline. Timeouts are failures of that operation; nothing is retried.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job: %s timed out after %s: %v", e.Op, e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// wrapTimeout converts a deadline expiry into a *TimeoutError and leaves
// every other error untouched.
func wrapTimeout(op string, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Timeout: timeout, Err: err}
	}
	return err
}
