package engine

import (
	"errors"
	"fmt"
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("query is empty")

// Capability steps, for identifying which external call failed.
const (
	StepRetrieval  = "retrieval"
	StepGeneration = "generation"
)

// CapabilityError wraps an embedding or generation provider failure. It is
// surfaced unchanged to the caller; the engine never retries internally.
type CapabilityError struct {
	Step string
	Err  error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s capability failed: %v", e.Step, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// InvariantError indicates an internal bug, e.g. a citation that is not a
// subset of the chunks supplied to the turn. Fatal, never suppressed.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Detail)
}
