// Package automaton defines the flat transition table that the match kernel
// walks on the compute device.
//
// An Automaton is a nondeterministic finite automaton over Unicode code points
// encoded as one contiguous buffer of 32-bit little-endian words. It holds no
// pointers: every link is a word index into the same buffer, so the whole
// automaton can be copied to a device as an opaque byte range and addressed
// there with plain arithmetic.
//
// Layout for an automaton with n states and fan-out o:
//
//	words [0, n)         base offset of each state's record
//	word  base           m, the number of slots of the state
//	words base+1 ...     m slots of 1+o words each:
//	                       symbol, target_0, ..., target_{o-1}
//
// Targets of a slot are padded with Reject when the symbol has fewer than o
// real targets. Slots are sorted by symbol, so guard slots (symbols above
// unicode.MaxRune) always form the tail of a record.
package automaton

import (
	"encoding/binary"
	"fmt"
	"unicode"
)

// Word is one storage cell of the flat automaton.
type Word = uint32

// WordSize is the size of a Word in bytes.
const WordSize = 4

// Reserved state indices, fixed by convention.
const (
	// Start is the entry point of every match attempt.
	Start uint32 = 0

	// Reject is the sink state: once reached, the attempt can never match.
	Reject uint32 = 1

	// Accept is the terminal state: reaching it completes a match.
	Accept uint32 = 2

	// NumReserved is the number of reserved states at the front of every automaton.
	NumReserved = 3
)

// Guard symbols are zero-width slots: their targets are entered without
// consuming input when the position-dependent condition holds.
const (
	// GuardAlways holds unconditionally (empty transition).
	GuardAlways Word = unicode.MaxRune + 1 + iota

	// GuardBeginText holds at the first position of the window.
	GuardBeginText

	// GuardEndText holds after the last element of the window.
	GuardEndText

	// GuardBeginLine holds at the window start or after '\n'.
	GuardBeginLine

	// GuardEndLine holds at the window end or before '\n'.
	GuardEndLine

	// GuardWordBoundary holds between an ASCII word and non-word character.
	GuardWordBoundary

	// GuardNoWordBoundary holds where GuardWordBoundary does not.
	GuardNoWordBoundary

	guardLimit
)

// IsGuard reports whether sym is a zero-width guard rather than a code point.
func IsGuard(sym Word) bool {
	return sym > unicode.MaxRune
}

// GuardName returns a short name for a guard symbol.
func GuardName(sym Word) string {
	switch sym {
	case GuardAlways:
		return "always"
	case GuardBeginText:
		return "begin-text"
	case GuardEndText:
		return "end-text"
	case GuardBeginLine:
		return "begin-line"
	case GuardEndLine:
		return "end-line"
	case GuardWordBoundary:
		return "word-boundary"
	case GuardNoWordBoundary:
		return "no-word-boundary"
	default:
		return fmt.Sprintf("guard(%d)", sym)
	}
}

// View gives arithmetic access to a serialized automaton held in raw bytes.
// It is what the match kernel uses on the device copy of the storage buffer.
type View struct {
	data []byte
	n, o uint32
}

// NewView wraps raw little-endian storage. It performs no validation; use
// FromBytes for untrusted data.
func NewView(data []byte, n, o uint32) View {
	return View{data: data, n: n, o: o}
}

// N returns the number of states.
func (v View) N() uint32 { return v.n }

// FanOut returns the uniform number of target words per slot.
func (v View) FanOut() uint32 { return v.o }

// Len returns the number of storage words.
func (v View) Len() int { return len(v.data) / WordSize }

// Word returns storage word i.
func (v View) Word(i uint32) Word {
	return binary.LittleEndian.Uint32(v.data[int(i)*WordSize:])
}

// Base returns the word offset where the record of state begins.
func (v View) Base(state uint32) uint32 {
	return v.Word(state)
}

// SlotCount returns m, the number of slots of state.
func (v View) SlotCount(state uint32) uint32 {
	return v.Word(v.Base(state))
}

// slotOffset returns the word offset of slot k of the record at base.
func (v View) slotOffset(base, k uint32) uint32 {
	return base + 1 + k*(1+v.o)
}

// Symbol returns the symbol of slot k of state.
func (v View) Symbol(state, k uint32) Word {
	return v.Word(v.slotOffset(v.Base(state), k))
}

// Target returns target j of slot k of state.
func (v View) Target(state, k, j uint32) uint32 {
	return v.Word(v.slotOffset(v.Base(state), k) + 1 + j)
}

// Find returns the slot of state whose symbol is sym.
// Slots are sorted, so this is a binary search over fixed-stride records.
func (v View) Find(state uint32, sym Word) (uint32, bool) {
	base := v.Base(state)
	lo, hi := uint32(0), v.Word(base)
	for lo < hi {
		mid := lo + (hi-lo)/2
		s := v.Word(v.slotOffset(base, mid))
		switch {
		case s == sym:
			return mid, true
		case s < sym:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return 0, false
}

// Automaton is an immutable, validated flat automaton.
type Automaton struct {
	View
}

// Bytes returns the contiguous storage buffer.
// The returned slice is shared with the automaton and must not be modified.
func (a *Automaton) Bytes() []byte {
	return a.data
}

// SizeBytes returns the size of the storage buffer in bytes.
func (a *Automaton) SizeBytes() int {
	return len(a.data)
}

// String returns a one-line summary.
func (a *Automaton) String() string {
	return fmt.Sprintf("Automaton{n=%d, o=%d, words=%d}", a.n, a.o, a.Len())
}

// FromBytes decodes a storage buffer produced by Serialize and validates it.
// The buffer is copied.
func FromBytes(data []byte, n, o uint32) (*Automaton, error) {
	if len(data)%WordSize != 0 {
		return nil, &FormatError{State: NoState, Message: fmt.Sprintf("storage length %d is not a multiple of %d", len(data), WordSize)}
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	a := &Automaton{View: NewView(buf, n, o)}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}
