// ABOUTME: Fault taxonomy for queue processing
// ABOUTME: Distinguishes transport, remote-rejection and validation failures for retry classification

package engine

import (
	"errors"
	"fmt"
)

// ErrOffline is returned by Sender implementations when no connectivity is
// available. It is a NetworkError for classification purposes.
var ErrOffline = errors.New("offline")

// NetworkError wraps a transport-level failure (no connectivity, timeout,
// connection refused). Network errors are retryable.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteError reports a non-success status from the backend. Remote errors
// are retryable; the backend may accept the same mutation later.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("remote rejected: status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("remote rejected: status %d", e.Status)
}

// ValidationError reports a malformed queue item (e.g. missing URL). It is
// never retried: the item moves straight to failed.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid queue item: %s", e.Reason)
}

// retryable reports whether a processing failure should be retried.
// Validation failures are terminal; everything else (transport faults,
// remote rejections, unexpected errors) gets another attempt.
func retryable(err error) bool {
	var ve *ValidationError
	return !errors.As(err, &ve)
}
