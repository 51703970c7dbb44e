package hnapi

import "fmt"

// OutcomeKind discriminates an Outcome.
type OutcomeKind int

const (
	// OutcomeFound carries a decoded JSON object.
	OutcomeFound OutcomeKind = iota + 1
	// OutcomeAbsent means the resource is confirmed missing (null or undecodable body).
	OutcomeAbsent
	// OutcomeFailed means the call could not be completed.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFound:
		return "found"
	case OutcomeAbsent:
		return "absent"
	case OutcomeFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Outcome is the result of a single item or user fetch: exactly one of
// Found(payload), Absent or Failed(err).
type Outcome struct {
	kind    OutcomeKind
	payload map[string]any
	err     error
}

// Found wraps a decoded object.
func Found(payload map[string]any) Outcome {
	return Outcome{kind: OutcomeFound, payload: payload}
}

// Absent is the null-result outcome.
func Absent() Outcome {
	return Outcome{kind: OutcomeAbsent}
}

// Failed wraps a transport or HTTP failure.
func Failed(err error) Outcome {
	return Outcome{kind: OutcomeFailed, err: err}
}

func (o Outcome) Kind() OutcomeKind { return o.kind }

// Payload returns the object for a Found outcome and nil otherwise.
func (o Outcome) Payload() map[string]any { return o.payload }

// Err returns the failure for a Failed outcome and nil otherwise.
func (o Outcome) Err() error { return o.err }

func (o Outcome) IsFound() bool  { return o.kind == OutcomeFound }
func (o Outcome) IsAbsent() bool { return o.kind == OutcomeAbsent }
func (o Outcome) IsFailed() bool { return o.kind == OutcomeFailed }

func (o Outcome) String() string {
	switch o.kind {
	case OutcomeFound:
		return fmt.Sprintf("found(id=%v)", o.payload["id"])
	case OutcomeFailed:
		return fmt.Sprintf("failed(%v)", o.err)
	default:
		return o.kind.String()
	}
}
