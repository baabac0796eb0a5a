package automaton

import "fmt"

// Validate checks structural well-formedness using only (n, o, storage):
//   - n >= NumReserved and the base table fits in storage
//   - records are contiguous, in state order, and exactly 1+m*(1+o) words
//   - storage ends exactly after the last record
//   - Reject and Accept have no slots
//   - symbols are strictly ascending and valid
//   - every target is < n, real targets ascending, padding is trailing Reject
func (v View) Validate() error {
	if v.n < NumReserved {
		return &FormatError{State: NoState, Message: fmt.Sprintf("need at least %d states, got %d", NumReserved, v.n)}
	}
	if len(v.data)%WordSize != 0 {
		return &FormatError{State: NoState, Message: "storage is not word aligned"}
	}
	size := uint64(v.Len())
	if uint64(v.n) > size {
		return &FormatError{State: NoState, Message: fmt.Sprintf("base table of %d words exceeds storage of %d words", v.n, size)}
	}

	cursor := uint64(v.n)
	stride := 1 + uint64(v.o)
	for i := uint32(0); i < v.n; i++ {
		base := uint64(v.Word(i))
		if base != cursor {
			return &FormatError{State: i, Message: fmt.Sprintf("record at word %d, expected %d", base, cursor)}
		}
		if base >= size {
			return &FormatError{State: i, Message: "record starts past end of storage"}
		}
		m := uint64(v.Word(uint32(base)))
		end := base + 1 + m*stride
		if end > size {
			return &FormatError{State: i, Message: fmt.Sprintf("record of %d slots overruns storage", m)}
		}
		if m > 0 && (i == Reject || i == Accept) {
			return &FormatError{State: i, Message: "reserved terminal state has transitions"}
		}
		if err := v.validateSlots(i, uint32(m)); err != nil {
			return err
		}
		cursor = end
	}
	if cursor != size {
		return &FormatError{State: NoState, Message: fmt.Sprintf("%d trailing words after last record", size-cursor)}
	}
	return nil
}

func (v View) validateSlots(state, m uint32) error {
	var prev Word
	for k := uint32(0); k < m; k++ {
		sym := v.Symbol(state, k)
		if sym >= guardLimit {
			return &FormatError{State: state, Message: fmt.Sprintf("slot %d has invalid symbol %d", k, sym)}
		}
		if k > 0 && sym <= prev {
			return &FormatError{State: state, Message: fmt.Sprintf("slot %d symbol %d not ascending", k, sym)}
		}
		prev = sym

		padding := false
		var last uint32
		for j := uint32(0); j < v.o; j++ {
			t := v.Target(state, k, j)
			if t >= v.n {
				return &FormatError{State: state, Message: fmt.Sprintf("slot %d target %d out of range", k, t)}
			}
			if t == Reject {
				padding = true
				continue
			}
			if padding {
				return &FormatError{State: state, Message: fmt.Sprintf("slot %d has target after padding", k)}
			}
			if j > 0 && t <= last {
				return &FormatError{State: state, Message: fmt.Sprintf("slot %d targets not ascending", k)}
			}
			last = t
		}
	}
	return nil
}
