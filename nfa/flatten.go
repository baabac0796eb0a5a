package nfa

import (
	"fmt"
	"slices"

	"github.com/coregx/oclgrep/automaton"
	"github.com/coregx/oclgrep/internal/sparse"
)

// Flatten turns a Thompson NFA into a flat automaton.
//
// Epsilon transitions (splits and epsilons) are eliminated: every class or
// look state reachable from the start becomes one automaton state, and its
// transitions lead to the epsilon closure of its successor. Start is the union
// of the closure of the NFA start; a match state in that closure becomes a
// GuardAlways slot to Accept. Classes expand to one slot per code point, and
// the fan-out is the largest closure any slot leads to.
func (c *Compiler) Flatten(n *NFA) (*automaton.Automaton, error) {
	f := &flattener{
		nfa:       n,
		maxStates: c.config.MaxStates,
		closures:  make([][]StateID, n.States()),
		flatID:    make([]uint32, n.States()),
		seen:      sparse.NewSparseSet(uint32(n.States())),
	}
	return f.run()
}

type flattener struct {
	nfa       *NFA
	maxStates int

	closures [][]StateID // memoized epsilon closures, nil until computed
	seen     *sparse.SparseSet
	stack    []StateID

	flatID []uint32  // automaton state of each NFA state, 0 until assigned
	order  []StateID // NFA states in automaton order, offset by NumReserved
}

func (f *flattener) run() (*automaton.Automaton, error) {
	records := make([]automaton.StateRecord, automaton.NumReserved, automaton.NumReserved+16)

	start, err := f.record(f.closure(f.nfa.Start()))
	if err != nil {
		return nil, err
	}
	records[automaton.Start] = start

	// order grows while records are built
	for i := 0; i < len(f.order); i++ {
		rec, err := f.record(f.order[i : i+1])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return automaton.Serialize(records)
}

// closure returns the class, look and match states reachable from id
// through epsilon and split transitions, in depth-first order.
func (f *flattener) closure(id StateID) []StateID {
	if f.closures[id] != nil {
		return f.closures[id]
	}

	out := make([]StateID, 0, 4)
	f.seen.Clear()
	f.stack = append(f.stack[:0], id)
	for len(f.stack) > 0 {
		s := f.stack[len(f.stack)-1]
		f.stack = f.stack[:len(f.stack)-1]
		if !f.seen.Insert(uint32(s)) {
			continue
		}
		st := f.nfa.State(s)
		switch st.Kind() {
		case StateSplit:
			left, right := st.Split()
			f.stack = append(f.stack, right, left)
		case StateEpsilon:
			f.stack = append(f.stack, st.Epsilon())
		case StateClass, StateLook, StateMatch:
			out = append(out, s)
		}
	}

	f.closures[id] = out
	return out
}

// targets maps a closure to automaton states, assigning new ones on demand.
func (f *flattener) targets(members []StateID) ([]uint32, error) {
	out := make([]uint32, 0, len(members))
	for _, m := range members {
		if f.nfa.IsMatch(m) {
			out = append(out, automaton.Accept)
			continue
		}
		if f.flatID[m] == 0 {
			if len(f.order)+automaton.NumReserved >= f.maxStates {
				return nil, fmt.Errorf("%w: more than %d automaton states", ErrTooComplex, f.maxStates)
			}
			f.flatID[m] = uint32(len(f.order) + automaton.NumReserved)
			f.order = append(f.order, m)
		}
		out = append(out, f.flatID[m])
	}
	return out, nil
}

type interval struct {
	lo, hi  rune
	targets []uint32
}

// record builds the transition record of the automaton state standing for
// the given NFA states.
func (f *flattener) record(members []StateID) (automaton.StateRecord, error) {
	var intervals []interval
	guards := make(map[automaton.Word][]uint32)

	for _, m := range members {
		st := f.nfa.State(m)
		switch st.Kind() {
		case StateClass:
			ranges, next := st.Class()
			t, err := f.targets(f.closure(next))
			if err != nil {
				return automaton.StateRecord{}, err
			}
			if len(t) == 0 {
				continue
			}
			for i := 0; i+1 < len(ranges); i += 2 {
				intervals = append(intervals, interval{lo: ranges[i], hi: ranges[i+1], targets: t})
			}
		case StateLook:
			look, next := st.Look()
			t, err := f.targets(f.closure(next))
			if err != nil {
				return automaton.StateRecord{}, err
			}
			g := look.Guard()
			guards[g] = append(guards[g], t...)
		case StateMatch:
			guards[automaton.GuardAlways] = append(guards[automaton.GuardAlways], automaton.Accept)
		}
	}

	slots := expand(intervals)
	for g, t := range guards {
		slots = append(slots, automaton.Slot{Symbol: g, Targets: t})
	}
	return automaton.StateRecord{Slots: slots}, nil
}

// expand turns possibly overlapping code point intervals into one slot per
// code point, merging the targets of every interval covering it.
func expand(intervals []interval) []automaton.Slot {
	if len(intervals) == 0 {
		return nil
	}

	points := make([]rune, 0, 2*len(intervals))
	for _, iv := range intervals {
		points = append(points, iv.lo, iv.hi+1)
	}
	slices.Sort(points)
	points = slices.Compact(points)

	var slots []automaton.Slot
	for i := 0; i+1 < len(points); i++ {
		lo, end := points[i], points[i+1]
		var union []uint32
		for _, iv := range intervals {
			if iv.lo <= lo && lo <= iv.hi {
				union = append(union, iv.targets...)
			}
		}
		if len(union) == 0 {
			continue
		}
		slices.Sort(union)
		union = slices.Compact(union)
		if slots == nil {
			slots = make([]automaton.Slot, 0, int(points[len(points)-1]-points[0]))
		}
		for r := lo; r < end; r++ {
			slots = append(slots, automaton.Slot{Symbol: automaton.Word(r), Targets: union})
		}
	}
	return slots
}
