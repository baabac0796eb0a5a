package automaton

import (
	"errors"
	"fmt"
)

// NoState marks a FormatError that is not tied to a particular state.
const NoState = ^uint32(0)

// ErrMalformed indicates a storage buffer that violates the flat layout.
var ErrMalformed = errors.New("malformed automaton")

// FormatError describes a violation of the flat automaton layout.
type FormatError struct {
	State   uint32
	Message string
}

// Error implements the error interface
func (e *FormatError) Error() string {
	if e.State != NoState {
		return fmt.Sprintf("malformed automaton at state %d: %s", e.State, e.Message)
	}
	return "malformed automaton: " + e.Message
}

// Unwrap returns ErrMalformed so callers can match with errors.Is.
func (e *FormatError) Unwrap() error {
	return ErrMalformed
}
