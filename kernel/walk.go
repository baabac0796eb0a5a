package kernel

import (
	"github.com/coregx/oclgrep/automaton"
	"github.com/coregx/oclgrep/internal/sparse"
)

// Scratch is the private memory of one compute unit: the current and next
// state sets of a walk and the stack of the guard closure.
type Scratch struct {
	cur, next *sparse.SparseSet
	stack     []uint32
}

// NewScratch allocates scratch for automata of n states.
func NewScratch(n uint32) *Scratch {
	return &Scratch{
		cur:   sparse.NewSparseSet(n),
		next:  sparse.NewSparseSet(n),
		stack: make([]uint32, 0, n),
	}
}

// Walk reports whether the automaton reaches Accept starting from Start at
// offset start of w. The scratch must have been created for v.N() states.
func Walk(v automaton.View, w Window, start int, s *Scratch) bool {
	length := w.Len()
	cur, next := s.cur, s.next
	cur.Clear()
	s.enter(v, w, cur, automaton.Start, start)

	for pos := start; ; pos++ {
		if cur.Contains(automaton.Accept) {
			return true
		}
		if pos == length || cur.IsEmpty() {
			return false
		}

		sym := automaton.Word(w.At(pos))
		if automaton.IsGuard(sym) {
			// not a code point: no slot consumes it
			return false
		}
		next.Clear()
		for i := 0; i < cur.Len(); i++ {
			state := cur.At(i)
			k, ok := v.Find(state, sym)
			if !ok {
				continue
			}
			for j := uint32(0); j < v.FanOut(); j++ {
				t := v.Target(state, k, j)
				if t == automaton.Reject {
					break
				}
				s.enter(v, w, next, t, pos+1)
			}
		}
		cur, next = next, cur
	}
}

// enter adds state to set together with every state reachable from it
// through guard slots that hold at pos.
func (s *Scratch) enter(v automaton.View, w Window, set *sparse.SparseSet, state uint32, pos int) {
	if !set.Insert(state) {
		return
	}
	s.stack = append(s.stack[:0], state)
	for len(s.stack) > 0 {
		st := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]

		// guard slots sort last
		for k := v.SlotCount(st); k > 0; k-- {
			sym := v.Symbol(st, k-1)
			if !automaton.IsGuard(sym) {
				break
			}
			if !guardHolds(sym, w, pos) {
				continue
			}
			for j := uint32(0); j < v.FanOut(); j++ {
				t := v.Target(st, k-1, j)
				if t == automaton.Reject {
					break
				}
				if set.Insert(t) {
					s.stack = append(s.stack, t)
				}
			}
		}
	}
}

func guardHolds(g automaton.Word, w Window, pos int) bool {
	length := w.Len()
	switch g {
	case automaton.GuardAlways:
		return true
	case automaton.GuardBeginText:
		return pos == 0
	case automaton.GuardEndText:
		return pos == length
	case automaton.GuardBeginLine:
		return pos == 0 || w.At(pos-1) == '\n'
	case automaton.GuardEndLine:
		return pos == length || w.At(pos) == '\n'
	case automaton.GuardWordBoundary:
		return isWordAt(w, pos-1) != isWordAt(w, pos)
	case automaton.GuardNoWordBoundary:
		return isWordAt(w, pos-1) == isWordAt(w, pos)
	default:
		return false
	}
}

// isWordAt reports whether position i holds an ASCII word character.
// Positions outside the window are non-word.
func isWordAt(w Window, i int) bool {
	if i < 0 || i >= w.Len() {
		return false
	}
	r := w.At(i)
	return r == '_' || ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}

// MatchAll evaluates every start offset of window on the host and returns
// the matching ones in ascending order. It computes the same result as a
// dispatch of the match kernel.
func MatchAll(a *automaton.Automaton, window []rune) []int {
	w := EncodeWindow(make([]byte, 0, len(window)*4), window)
	s := NewScratch(a.N())
	var out []int
	for start := 0; start < len(window); start++ {
		if Walk(a.View, w, start, s) {
			out = append(out, start)
		}
	}
	return out
}
