// Package retry runs an operation under a bounded exponential-backoff policy.
//
// The loop is an explicit state machine:
//
//	Attempting(n) -> Succeeded
//	Attempting(n) -> Sleeping(n) -> Attempting(n+1)
//	Attempting(n) -> Exhausted    (retryable failure on the last attempt)
//	Attempting(n) -> Aborted      (non-retryable failure or cancellation)
//
// Sleeping goes through an injectable Sleeper so callers can observe the
// backoff schedule without real delays.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrExhausted is matched by the error returned once every attempt failed.
	ErrExhausted = errors.New("retry budget exhausted")
	// ErrCanceled is matched when the context ends while waiting to retry.
	ErrCanceled = errors.New("retry canceled")
)

// maxShift bounds the exponent so Delay never overflows.
const maxShift = 30

// State is a node of the retry state machine.
type State int

const (
	StateAttempting State = iota
	StateSleeping
	StateSucceeded
	StateExhausted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateSleeping:
		return "sleeping"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Policy describes the retry budget.
type Policy struct {
	// Retries is the number of retries after the first attempt.
	Retries int
	// Backoff is the base delay; attempt k sleeps Backoff * 2^k before the next one.
	Backoff time.Duration
}

// DefaultPolicy is 3 retries with a 500ms base delay.
func DefaultPolicy() Policy {
	return Policy{Retries: 3, Backoff: 500 * time.Millisecond}
}

// MaxAttempts returns the total number of attempts the policy allows.
func (p Policy) MaxAttempts() int {
	if p.Retries < 0 {
		return 1
	}
	return p.Retries + 1
}

// Delay returns the sleep that follows the failed 0-indexed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxShift {
		attempt = maxShift
	}
	return p.Backoff * time.Duration(1<<attempt)
}

// Transition is emitted on every state change.
type Transition struct {
	From    State
	To      State
	Attempt int
	Delay   time.Duration
	Err     error
}

// ExhaustedError is returned when the last allowed attempt failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrExhausted, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error { return []error{ErrExhausted, e.Last} }

// Result summarises a finished run.
type Result struct {
	State    State
	Attempts int
}

// Machine executes operations under a Policy.
type Machine struct {
	policy       Policy
	sleeper      Sleeper
	isRetryable  func(error) bool
	onTransition func(Transition)
}

// Option configures a Machine.
type Option func(*Machine)

// WithSleeper replaces the real sleeper.
func WithSleeper(s Sleeper) Option {
	return func(m *Machine) { m.sleeper = s }
}

// WithClassifier sets the predicate deciding which errors are retried.
// Without one every error is retried.
func WithClassifier(fn func(error) bool) Option {
	return func(m *Machine) { m.isRetryable = fn }
}

// WithObserver registers a callback invoked on every transition.
func WithObserver(fn func(Transition)) Option {
	return func(m *Machine) { m.onTransition = fn }
}

// New creates a Machine for the given policy.
func New(policy Policy, opts ...Option) *Machine {
	m := &Machine{
		policy:      policy,
		sleeper:     RealSleeper{},
		isRetryable: func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// budget is spent. fn receives the 0-indexed attempt number.
func (m *Machine) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (Result, error) {
	maxAttempts := m.policy.MaxAttempts()

	for attempt := 0; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			m.emit(Transition{From: StateAttempting, To: StateSucceeded, Attempt: attempt})
			return Result{State: StateSucceeded, Attempts: attempt + 1}, nil
		}

		if !m.isRetryable(err) {
			m.emit(Transition{From: StateAttempting, To: StateAborted, Attempt: attempt, Err: err})
			return Result{State: StateAborted, Attempts: attempt + 1}, err
		}

		if attempt+1 >= maxAttempts {
			m.emit(Transition{From: StateAttempting, To: StateExhausted, Attempt: attempt, Err: err})
			return Result{State: StateExhausted, Attempts: attempt + 1},
				&ExhaustedError{Attempts: attempt + 1, Last: err}
		}

		delay := m.policy.Delay(attempt)
		m.emit(Transition{From: StateAttempting, To: StateSleeping, Attempt: attempt, Delay: delay, Err: err})

		if sleepErr := m.sleeper.Sleep(ctx, delay); sleepErr != nil {
			m.emit(Transition{From: StateSleeping, To: StateAborted, Attempt: attempt, Err: sleepErr})
			return Result{State: StateAborted, Attempts: attempt + 1},
				fmt.Errorf("%w: %w (last error: %w)", ErrCanceled, sleepErr, err)
		}

		m.emit(Transition{From: StateSleeping, To: StateAttempting, Attempt: attempt + 1})
	}
}

func (m *Machine) emit(t Transition) {
	if m.onTransition != nil {
		m.onTransition(t)
	}
}
