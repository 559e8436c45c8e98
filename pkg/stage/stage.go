// Package stage defines the outcome of one pipeline stage invocation and the
// error boundary every stage entry point runs inside.
//
// A stage never propagates an error or a panic to its caller. Instead it
// returns a Result carrying the status, the error class and the counters the
// stage produced, so that schedulers and the CLI have an explicit signal to
// act on in addition to the diagnostic log.
package stage

import (
	"errors"
	"fmt"
	"time"
)

// Name identifies a pipeline stage.
type Name string

const (
	Extract   Name = "extract"
	Convert   Name = "convert"
	Clean     Name = "clean"
	Aggregate Name = "aggregate"
)

// Order is the fixed execution order of the stages.
var Order = []Name{Extract, Convert, Clean, Aggregate}

// ParseName returns the stage called s.
func ParseName(s string) (Name, error) {
	for _, n := range Order {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Status is the outcome of a stage invocation.
type Status string

const (
	// StatusSuccess means the stage committed its output artifact.
	StatusSuccess Status = "success"

	// StatusSkipped means the stage finished without error but had nothing
	// to write (e.g. aggregate over an empty silver layer).
	StatusSkipped Status = "skipped"

	// StatusFailed means the stage stopped and committed nothing.
	StatusFailed Status = "failed"
)

// Class categorises a stage failure.
type Class string

const (
	// ClassTransport covers an unreachable source API or a non-2xx status.
	ClassTransport Class = "transport"

	// ClassIntegrity covers a missing or structurally invalid upstream artifact.
	ClassIntegrity Class = "integrity"

	// ClassInternal covers write failures and recovered panics.
	ClassInternal Class = "internal"
)

// Sentinel errors shared by the stages.
var (
	// ErrMissingArtifact is returned when an upstream artifact does not exist.
	ErrMissingArtifact = errors.New("upstream artifact missing")

	// ErrInvalidArtifact is returned when an upstream artifact cannot be parsed
	// or does not match its schema.
	ErrInvalidArtifact = errors.New("upstream artifact invalid")

	// ErrTransport is returned when the source API cannot be read.
	ErrTransport = errors.New("source transport failed")
)

// Error is a classified stage failure.
type Error struct {
	Class Class
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %v", e.Class, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Transport wraps err as a transport failure.
func Transport(err error) error { return &Error{Class: ClassTransport, Err: err} }

// Integrity wraps err as a data-integrity failure.
func Integrity(err error) error { return &Error{Class: ClassIntegrity, Err: err} }

// Internal wraps err as an internal failure.
func Internal(err error) error { return &Error{Class: ClassInternal, Err: err} }

// ClassOf returns the class of err, defaulting to ClassInternal.
func ClassOf(err error) Class {
	var se *Error
	if errors.As(err, &se) {
		return se.Class
	}
	switch {
	case errors.Is(err, ErrTransport):
		return ClassTransport
	case errors.Is(err, ErrMissingArtifact), errors.Is(err, ErrInvalidArtifact):
		return ClassIntegrity
	}
	return ClassInternal
}

// Result is the structured outcome of one stage invocation.
type Result struct {
	Stage     Name             `json:"stage"`
	RunID     string           `json:"run_id"`
	Status    Status           `json:"status"`
	Class     Class            `json:"error_class,omitempty"`
	Message   string           `json:"message,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Artifacts []string         `json:"artifacts,omitempty"`
	RowsIn    int              `json:"rows_in"`
	RowsOut   int              `json:"rows_out"`
	Counters  map[string]int64 `json:"counters,omitempty"`
	err       error
}

// Err returns the failure that ended the stage, or nil.
func (r Result) Err() error { return r.err }

// OK reports whether the stage finished without failure.
func (r Result) OK() bool { return r.Status != StatusFailed }

// Outcome is what a stage body reports back to the boundary.
type Outcome struct {
	Status    Status
	Message   string
	Artifacts []string
	RowsIn    int
	RowsOut   int
	Counters  map[string]int64
}
