// Package conv provides checked integer conversions for automaton storage
// and device kernel arguments.
//
// Storage words and kernel scalars are 32-bit. Lengths and offsets computed
// as int must fit; a value that does not indicates a programming error, so
// the conversions panic rather than truncate.
package conv

import "math"

// IntToUint32 safely converts an int to uint32.
// Panics if n < 0 or n > math.MaxUint32.
func IntToUint32(n int) uint32 {
	// compare as uint: int cannot hold MaxUint32 on 32-bit platforms
	if n < 0 || uint(n) > math.MaxUint32 {
		panic("integer overflow: int value out of uint32 range")
	}
	return uint32(n)
}
