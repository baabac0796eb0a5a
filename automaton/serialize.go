package automaton

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/coregx/oclgrep/internal/conv"
)

// MaxWords bounds the storage size so every word index fits a Word and the
// buffer stays addressable by 32-bit device offsets.
const MaxWords = 1 << 30

// Slot is one logical transition entry: a symbol and the states it leads to.
type Slot struct {
	Symbol  Word
	Targets []uint32
}

// StateRecord is the logical transition record of one state.
type StateRecord struct {
	Slots []Slot
}

// Serialize flattens a logical automaton into fixed-stride storage.
//
// records[i] describes state i; the first NumReserved records are Start,
// Reject and Accept. Slots are sorted by symbol and targets are sorted and
// deduplicated. Reject is dropped from real targets, and a slot left with no
// real target is omitted. The fan-out is the largest target count of any
// slot; shorter slots are padded with Reject.
func Serialize(records []StateRecord) (*Automaton, error) {
	if len(records) < NumReserved {
		return nil, &FormatError{State: NoState, Message: fmt.Sprintf("need at least %d states, got %d", NumReserved, len(records))}
	}
	if len(records) >= MaxWords {
		return nil, &FormatError{State: NoState, Message: fmt.Sprintf("too many states: %d", len(records))}
	}
	n := conv.IntToUint32(len(records))

	normalized := make([][]Slot, len(records))
	fanOut := 0
	total := len(records)
	for i, rec := range records {
		slots, err := normalizeSlots(uint32(i), rec.Slots, n)
		if err != nil {
			return nil, err
		}
		if len(slots) > 0 && (uint32(i) == Reject || uint32(i) == Accept) {
			return nil, &FormatError{State: uint32(i), Message: "reserved terminal state has transitions"}
		}
		for _, s := range slots {
			fanOut = max(fanOut, len(s.Targets))
		}
		normalized[i] = slots
	}
	for _, slots := range normalized {
		total += 1 + len(slots)*(1+fanOut)
		if total >= MaxWords {
			return nil, &FormatError{State: NoState, Message: fmt.Sprintf("storage exceeds %d words", MaxWords)}
		}
	}

	o := conv.IntToUint32(fanOut)
	data := make([]byte, total*WordSize)
	put := func(at uint32, w Word) {
		binary.LittleEndian.PutUint32(data[int(at)*WordSize:], w)
	}

	cursor := n
	for i, slots := range normalized {
		put(uint32(i), cursor)
		put(cursor, conv.IntToUint32(len(slots)))
		at := cursor + 1
		for _, s := range slots {
			put(at, s.Symbol)
			for j := uint32(0); j < o; j++ {
				t := Reject
				if int(j) < len(s.Targets) {
					t = s.Targets[j]
				}
				put(at+1+j, t)
			}
			at += 1 + o
		}
		cursor = at
	}

	return &Automaton{View: NewView(data, n, o)}, nil
}

func normalizeSlots(state uint32, in []Slot, n uint32) ([]Slot, error) {
	out := make([]Slot, 0, len(in))
	for _, s := range in {
		if s.Symbol >= guardLimit {
			return nil, &FormatError{State: state, Message: fmt.Sprintf("invalid symbol %d", s.Symbol)}
		}
		targets := make([]uint32, 0, len(s.Targets))
		for _, t := range s.Targets {
			if t >= n {
				return nil, &FormatError{State: state, Message: fmt.Sprintf("target %d out of range (n=%d)", t, n)}
			}
			if t != Reject {
				targets = append(targets, t)
			}
		}
		if len(targets) == 0 {
			continue
		}
		slices.Sort(targets)
		out = append(out, Slot{Symbol: s.Symbol, Targets: slices.Compact(targets)})
	}
	slices.SortFunc(out, func(a, b Slot) int {
		switch {
		case a.Symbol < b.Symbol:
			return -1
		case a.Symbol > b.Symbol:
			return 1
		}
		return 0
	})
	for k := 1; k < len(out); k++ {
		if out[k].Symbol == out[k-1].Symbol {
			return nil, &FormatError{State: state, Message: fmt.Sprintf("duplicate symbol %d", out[k].Symbol)}
		}
	}
	return out, nil
}
