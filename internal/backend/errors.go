package backend

import (
	"errors"
	"fmt"
)

// Failure taxonomy for the four desk operations. Every failure surfaces to
// the caller as one of these; nothing is swallowed.
var (
	// ErrNotFound means the order id did not resolve on the backend.
	ErrNotFound = errors.New("order not found")

	// ErrInvalidAmount is raised locally, before any network call. The
	// backend re-validates; this is a UX guard, not the authority.
	ErrInvalidAmount = errors.New("amount must be a positive number of whole VND")
)

// TransportError wraps network-level failures and 5xx responses. Retrying is
// the caller's decision; the client never retries on its own because the
// cash settlement call is not idempotent server-side.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// GatewayRejectedError is a non-2xx answer from the payment backend when
// initiating a gateway session.
type GatewayRejectedError struct {
	Op     string
	Status int
	Body   string
}

func (e *GatewayRejectedError) Error() string {
	return fmt.Sprintf("%s: payment backend rejected request (status %d): %s", e.Op, e.Status, e.Body)
}

// MalformedError means the response body could not be parsed into the
// expected shape.
type MalformedError struct {
	Op  string
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }
