// Package nfa compiles regular expressions into flat automata.
//
// Compilation happens in two stages. A Thompson construction over the
// regexp/syntax parse tree produces an NFA of explicit states (code point
// classes, splits, epsilons, zero-width assertions). Flattening then removes
// epsilon transitions, expands every class into one transition entry per code
// point, and serializes the result with a uniform fan-out into an
// automaton.Automaton.
package nfa

import (
	"errors"
	"fmt"
)

// Common NFA errors
var (
	// ErrInvalidPattern indicates the regex pattern is invalid or unsupported
	ErrInvalidPattern = errors.New("invalid regex pattern")

	// ErrTooComplex indicates the pattern is too complex to compile
	ErrTooComplex = errors.New("pattern too complex")

	// ErrInvalidConfig indicates invalid configuration was provided
	ErrInvalidConfig = errors.New("invalid compiler configuration")
)

// PatternError reports a pattern that cannot be compiled. It is caller-facing:
// fixing the pattern fixes the error. No automaton is produced alongside it.
type PatternError struct {
	Pattern string
	Err     error
}

// Error implements the error interface
func (e *PatternError) Error() string {
	if e.Pattern != "" {
		return fmt.Sprintf("cannot compile pattern %q: %v", e.Pattern, e.Err)
	}
	return fmt.Sprintf("cannot compile pattern: %v", e.Err)
}

// Unwrap returns the underlying error
func (e *PatternError) Unwrap() error {
	return e.Err
}

// BuildError represents an error during NFA construction via the Builder API
type BuildError struct {
	Message string
	StateID StateID
}

// Error implements the error interface
func (e *BuildError) Error() string {
	if e.StateID != InvalidState {
		return fmt.Sprintf("NFA build error at state %d: %s", e.StateID, e.Message)
	}
	return fmt.Sprintf("NFA build error: %s", e.Message)
}
