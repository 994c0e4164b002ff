// ABOUTME: Sender capability contract used by the reconciliation loop
// ABOUTME: Separates transport failure (error) from remote rejection (OK=false)

package engine

import (
	"context"
	"encoding/json"
)

// Request describes one queued mutation to deliver to the backend.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    json.RawMessage
}

// Response is the outcome of a delivered request. OK reports a 2xx status.
type Response struct {
	OK     bool
	Status int
	Data   json.RawMessage
}

// Sender performs a single delivery attempt. A returned error means the
// request never got a usable answer from the backend (no connectivity,
// timeout) and is retryable. A non-nil Response with OK=false means the
// backend answered with a non-success status, which is also retryable.
// Retry accounting lives in the queue, not the Sender: implementations must
// not retry internally.
type Sender interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, req Request) (*Response, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
