package kernel

import "encoding/binary"

// Window is a sequence of code points encoded as 32-bit little-endian words,
// the form windows take in device memory.
type Window []byte

// EncodeWindow appends the UTF-32LE encoding of runes to dst.
func EncodeWindow(dst []byte, runes []rune) Window {
	for _, r := range runes {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(r))
	}
	return dst
}

// Len returns the number of code points.
func (w Window) Len() int {
	return len(w) / 4
}

// At returns code point i.
func (w Window) At(i int) rune {
	return rune(binary.LittleEndian.Uint32(w[i*4:]))
}
