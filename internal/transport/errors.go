package transport

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/retry"
)

var (
	// ErrTransport is matched by every *TransportError.
	ErrTransport = errors.New("transport failure")
	// ErrExhausted is matched when the failure survived every retry.
	ErrExhausted = retry.ErrExhausted
	// ErrBodyTooLarge is matched when a response body exceeds the size cap.
	ErrBodyTooLarge = errors.New("response body too large")
)

// Kind classifies a transport failure.
type Kind string

const (
	KindTimeout      Kind = "timeout"
	KindConnection   Kind = "connection"
	KindServerError  Kind = "server_error"
	KindRequest      Kind = "request"
	KindCanceled     Kind = "canceled"
	// KindBodyTooLarge is never retried: the upstream would send the same body.
	KindBodyTooLarge Kind = "body_too_large"
)

// Retryable reports whether failures of this kind are retried.
func (k Kind) Retryable() bool {
	return k == KindTimeout || k == KindConnection || k == KindServerError
}

// ServerError is synthesized for responses with status >= 500 so they flow
// through the same retry path as network failures.
type ServerError struct {
	StatusCode int
	Status     string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d", e.StatusCode)
}

// TransportError is the terminal failure of a GET.
type TransportError struct {
	URL       string
	Attempts  int
	Kind      Kind
	Exhausted bool
	Err       error
}

func (e *TransportError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("GET %s: %s after %d attempts: %v", e.URL, e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("GET %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() []error {
	if e.Exhausted {
		return []error{ErrTransport, ErrExhausted, e.Err}
	}
	return []error{ErrTransport, e.Err}
}

// attemptError carries the classification of one failed attempt through
// the retry machine.
type attemptError struct {
	kind Kind
	err  error
}

func (e *attemptError) Error() string { return e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var ae *attemptError
	if errors.As(err, &ae) {
		return ae.kind.Retryable()
	}
	return false
}

func kindOf(err error) Kind {
	var ae *attemptError
	if errors.As(err, &ae) {
		return ae.kind
	}
	return KindConnection
}

// classify maps an error from client.Do or a body read onto a Kind. The
// caller has already ruled out cancellation of the parent context.
func classify(err error) Kind {
	var se *ServerError
	if errors.As(err, &se) {
		return KindServerError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	// Anything else out of client.Do or a body read is a dial, reset or
	// truncated-stream failure on the connection.
	return KindConnection
}
