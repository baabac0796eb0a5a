package runner

import (
	"encoding/binary"

	"github.com/coregx/ahocorasick"

	"github.com/coregx/oclgrep/automaton"
	"github.com/coregx/oclgrep/internal/conv"
	"github.com/coregx/oclgrep/kernel"
)

// prefilter finds the start offsets of a window whose code point has a
// transition out of Start. It only exists for automata whose Start has no
// guard slots: such automata can only match by consuming from Start, so
// every other offset is known not to match.
type prefilter struct {
	symbols int
	ac      *ahocorasick.Automaton // nil when Start has no transitions
}

// newPrefilter returns nil when the automaton does not admit a prefilter.
func newPrefilter(a *automaton.Automaton) (*prefilter, error) {
	m := a.SlotCount(automaton.Start)
	if m > 0 && automaton.IsGuard(a.Symbol(automaton.Start, m-1)) {
		return nil, nil
	}
	if m > MaxPrefilterSymbols {
		return nil, nil
	}
	p := &prefilter{symbols: int(m)}
	if m == 0 {
		return p, nil
	}

	builder := ahocorasick.NewBuilder()
	for k := uint32(0); k < m; k++ {
		var lit [4]byte
		binary.LittleEndian.PutUint32(lit[:], a.Symbol(automaton.Start, k))
		builder.AddPattern(lit[:])
	}
	ac, err := builder.Build()
	if err != nil {
		return nil, err
	}
	p.ac = ac
	return p, nil
}

// candidates appends to dst the little-endian start offsets of w that can
// begin a match and returns dst with their count.
// Literals are one code point wide, so only hits at code point boundaries
// are candidates; a hit straddling two code points is skipped by one byte.
func (p *prefilter) candidates(dst []byte, w kernel.Window) ([]byte, int) {
	if p.ac == nil {
		return dst, 0
	}
	n := 0
	for at := 0; at < len(w); {
		m := p.ac.Find(w, at)
		if m == nil {
			break
		}
		if m.Start%4 != 0 {
			at = m.Start + 1
			continue
		}
		dst = binary.LittleEndian.AppendUint32(dst, conv.IntToUint32(m.Start/4))
		n++
		at = m.Start + 4
	}
	return dst, n
}
