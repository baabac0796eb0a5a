package automaton

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Dump writes a human-readable table of the automaton: state count, fan-out,
// storage size, and for every state its slot count, its reserved role, and
// every slot with all o targets (padding included).
func (v View) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Automaton (n=%d, o=%d, size=%dbyte):\n", v.n, v.o, len(v.data))
	for i := uint32(0); i < v.n; i++ {
		m := v.SlotCount(i)
		fmt.Fprintf(bw, "  node%d (m=%d", i, m)
		switch i {
		case Start:
			bw.WriteString(", START")
		case Reject:
			bw.WriteString(", REJECT")
		case Accept:
			bw.WriteString(", ACCEPT")
		}
		bw.WriteString("):\n")

		for k := uint32(0); k < m; k++ {
			fmt.Fprintf(bw, "    %s => [", SymbolString(v.Symbol(i, k)))
			for j := uint32(0); j < v.o; j++ {
				if j > 0 {
					bw.WriteByte(',')
				}
				bw.WriteString(strconv.FormatUint(uint64(v.Target(i, k, j)), 10))
			}
			bw.WriteString("]\n")
		}
	}
	return bw.Flush()
}

// SymbolString formats a slot symbol: the code point value and its quoted
// form, or the guard name in angle brackets.
func SymbolString(sym Word) string {
	if IsGuard(sym) {
		return "<" + GuardName(sym) + ">"
	}
	return strconv.FormatUint(uint64(sym), 10) + " " + strconv.QuoteRune(rune(sym))
}
