package nfa

import (
	"fmt"

	"github.com/coregx/oclgrep/automaton"
)

// StateID uniquely identifies a Thompson NFA state.
type StateID uint32

// InvalidState represents an invalid/uninitialized state ID
const InvalidState StateID = 0xFFFFFFFF

// StateKind identifies the type of NFA state and determines which transitions are valid.
type StateKind uint8

const (
	// StateMatch represents a match state (accepting state)
	StateMatch StateKind = iota

	// StateClass consumes one code point from a set of inclusive ranges
	StateClass

	// StateSplit represents an epsilon transition to 2 states (alternation, quantifiers)
	StateSplit

	// StateEpsilon represents an epsilon transition to 1 state
	StateEpsilon

	// StateLook represents a zero-width assertion (anchor or word boundary)
	StateLook

	// StateFail represents a dead state (no valid transitions)
	StateFail
)

// String returns a human-readable representation of the StateKind
func (k StateKind) String() string {
	switch k {
	case StateMatch:
		return "Match"
	case StateClass:
		return "Class"
	case StateSplit:
		return "Split"
	case StateEpsilon:
		return "Epsilon"
	case StateLook:
		return "Look"
	case StateFail:
		return "Fail"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Look is a zero-width assertion kind.
type Look uint8

const (
	LookStartText Look = iota
	LookEndText
	LookStartLine
	LookEndLine
	LookWordBoundary
	LookNoWordBoundary
)

// Guard returns the automaton guard symbol that realizes the assertion.
func (l Look) Guard() automaton.Word {
	switch l {
	case LookStartText:
		return automaton.GuardBeginText
	case LookEndText:
		return automaton.GuardEndText
	case LookStartLine:
		return automaton.GuardBeginLine
	case LookEndLine:
		return automaton.GuardEndLine
	case LookWordBoundary:
		return automaton.GuardWordBoundary
	default:
		return automaton.GuardNoWordBoundary
	}
}

// State represents a single NFA state with its transitions.
// The state's kind determines which fields are valid.
type State struct {
	id   StateID
	kind StateKind

	// For Class: inclusive code point ranges as pairs [lo1, hi1, lo2, hi2, ...]
	ranges []rune
	next   StateID // target state for Class/Epsilon/Look

	// For Split: epsilon transitions to two states
	left, right StateID

	look Look
}

// ID returns the state's unique identifier
func (s *State) ID() StateID {
	return s.id
}

// Kind returns the state's type
func (s *State) Kind() StateKind {
	return s.kind
}

// IsMatch returns true if this is a match state
func (s *State) IsMatch() bool {
	return s.kind == StateMatch
}

// Class returns the code point ranges and target of Class states.
// Returns (nil, InvalidState) for other states.
func (s *State) Class() (ranges []rune, next StateID) {
	if s.kind == StateClass {
		return s.ranges, s.next
	}
	return nil, InvalidState
}

// Split returns the two target states for Split states.
// Returns (InvalidState, InvalidState) for non-Split states.
func (s *State) Split() (left, right StateID) {
	if s.kind == StateSplit {
		return s.left, s.right
	}
	return InvalidState, InvalidState
}

// Epsilon returns the target state for Epsilon states.
// Returns InvalidState for non-Epsilon states.
func (s *State) Epsilon() StateID {
	if s.kind == StateEpsilon {
		return s.next
	}
	return InvalidState
}

// Look returns the assertion and target of Look states.
func (s *State) Look() (look Look, next StateID) {
	if s.kind == StateLook {
		return s.look, s.next
	}
	return 0, InvalidState
}

// classSize returns the number of code points the class consumes.
func classSize(ranges []rune) int {
	size := 0
	for i := 0; i+1 < len(ranges); i += 2 {
		size += int(ranges[i+1]-ranges[i]) + 1
	}
	return size
}

// String returns a human-readable representation of the state
func (s *State) String() string {
	switch s.kind {
	case StateMatch:
		return fmt.Sprintf("State(%d, Match)", s.id)
	case StateClass:
		if len(s.ranges) == 2 && s.ranges[0] == s.ranges[1] {
			return fmt.Sprintf("State(%d, Class %q -> %d)", s.id, s.ranges[0], s.next)
		}
		return fmt.Sprintf("State(%d, Class %d code points -> %d)", s.id, classSize(s.ranges), s.next)
	case StateSplit:
		return fmt.Sprintf("State(%d, Split -> [%d, %d])", s.id, s.left, s.right)
	case StateEpsilon:
		return fmt.Sprintf("State(%d, Epsilon -> %d)", s.id, s.next)
	case StateLook:
		return fmt.Sprintf("State(%d, Look %s -> %d)", s.id, automaton.GuardName(s.look.Guard()), s.next)
	case StateFail:
		return fmt.Sprintf("State(%d, Fail)", s.id)
	default:
		return fmt.Sprintf("State(%d, Unknown)", s.id)
	}
}

// NFA represents a Thompson NFA over code points.
// It is the intermediate form between the parsed pattern and the flat
// automaton: transitions are explicit states rather than table entries.
type NFA struct {
	// states contains all NFA states indexed by StateID
	states []State

	// start is where every match attempt begins
	start StateID
}

// Start returns the starting state ID of the NFA
func (n *NFA) Start() StateID {
	return n.start
}

// State returns the state with the given ID.
// Returns nil if the ID is invalid.
func (n *NFA) State(id StateID) *State {
	if id == InvalidState || int(id) >= len(n.states) {
		return nil
	}
	return &n.states[id]
}

// IsMatch returns true if the given state is a match state
func (n *NFA) IsMatch(id StateID) bool {
	if s := n.State(id); s != nil {
		return s.IsMatch()
	}
	return false
}

// States returns the total number of states in the NFA
func (n *NFA) States() int {
	return len(n.states)
}

// String returns a human-readable representation of the NFA
func (n *NFA) String() string {
	return fmt.Sprintf("NFA{states: %d, start: %d}", len(n.states), n.start)
}
