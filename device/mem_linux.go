//go:build linux

package device

import "golang.org/x/sys/unix"

// systemMemory returns the total physical memory of the host.
func systemMemory() uint64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return fallbackMemory
	}
	//nolint:unconvert // field widths differ between architectures
	return uint64(info.Totalram) * uint64(info.Unit)
}
