//go:build !linux

package device

// systemMemory returns a conservative device memory size where the host
// memory cannot be queried.
func systemMemory() uint64 {
	return fallbackMemory
}
