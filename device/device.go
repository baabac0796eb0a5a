// Package device provides an OpenCL-shaped data-parallel compute device that
// executes kernels on the host's cores.
//
// The model follows the usual accelerator API: a Device is discovered, a
// Context owns device memory (Buffers) and Programs, a Program is built from a
// Source and yields Kernels, and an in-order Queue executes write, fill,
// NDRange and read commands, each producing an Event with profiling
// timestamps.
//
// An NDRange dispatch splits the global range into work-groups that are spread
// over one goroutine per compute unit. Work-items never communicate; each
// compute unit owns private scratch memory allocated once per dispatch.
package device

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sys/cpu"
)

// Type classifies a device.
type Type uint8

const (
	// TypeCPU is a device backed by host cores.
	TypeCPU Type = iota
	// TypeAccelerator is a discrete compute device.
	TypeAccelerator
)

// String returns the OpenCL-style name of the device type.
func (t Type) String() string {
	switch t {
	case TypeCPU:
		return "CPU"
	case TypeAccelerator:
		return "ACCELERATOR"
	default:
		return fmt.Sprintf("Type(%d)", t)
	}
}

// DefaultMaxWorkGroupSize bounds the number of work-items in one work-group.
const DefaultMaxWorkGroupSize = 1024

// fallbackMemory is the device memory assumed when the host cannot be queried.
const fallbackMemory = 4 << 30

// Device describes a compute device.
type Device struct {
	ID     int
	Name   string
	Vendor string
	Type   Type

	// ComputeUnits is the number of work-groups that execute concurrently.
	ComputeUnits int

	// MaxWorkGroupSize bounds the local size of an NDRange.
	MaxWorkGroupSize int

	// PreferredWorkGroupMultiple is the vector width the device prefers
	// work-group sizes to be a multiple of.
	PreferredWorkGroupMultiple int

	// GlobalMemSize is the device memory in bytes. Contexts use it as the
	// default allocation limit.
	GlobalMemSize uint64

	// Features lists the vector extensions of the device.
	Features []string
}

// String returns a one-line description of the device.
func (d *Device) String() string {
	return fmt.Sprintf("%s (%s, %s, %d compute units, %d MiB, [%s])",
		d.Name, d.Vendor, d.Type, d.ComputeUnits, d.GlobalMemSize>>20, strings.Join(d.Features, " "))
}

var (
	devicesOnce sync.Once
	devices     []*Device
)

// Devices returns the available compute devices. Discovery runs once per
// process; the returned devices must not be modified.
func Devices() []*Device {
	devicesOnce.Do(func() {
		devices = []*Device{probeHost()}
	})
	return devices
}

// Find returns the first device whose name contains name (case-insensitive)
// and whose type matches. An empty name matches any device.
func Find(name string, typ Type) (*Device, error) {
	for _, d := range Devices() {
		if d.Type != typ {
			continue
		}
		if name == "" || strings.Contains(strings.ToLower(d.Name), strings.ToLower(name)) {
			return d, nil
		}
	}
	if name == "" {
		return nil, &Error{Op: "find device", Err: fmt.Errorf("%w: no %s device", ErrNoDevice, typ)}
	}
	return nil, &Error{Op: "find device", Err: fmt.Errorf("%w: no %s device named %q", ErrNoDevice, typ, name)}
}

func probeHost() *Device {
	features, lanes := vectorFeatures()
	return &Device{
		ID:                         0,
		Name:                       "host-" + runtime.GOARCH,
		Vendor:                     "oclgrep",
		Type:                       TypeCPU,
		ComputeUnits:               runtime.NumCPU(),
		MaxWorkGroupSize:           DefaultMaxWorkGroupSize,
		PreferredWorkGroupMultiple: lanes,
		GlobalMemSize:              systemMemory(),
		Features:                   features,
	}
}

// vectorFeatures reports the host vector extensions and the number of
// 32-bit lanes of the widest one.
func vectorFeatures() (features []string, lanes int) {
	lanes = 1
	switch runtime.GOARCH {
	case "amd64", "386":
		if cpu.X86.HasSSE42 {
			features = append(features, "sse4.2")
			lanes = 4
		}
		if cpu.X86.HasAVX2 {
			features = append(features, "avx2")
			lanes = 8
		}
		if cpu.X86.HasAVX512F {
			features = append(features, "avx512f")
			lanes = 16
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			features = append(features, "asimd")
			lanes = 4
		}
		if cpu.ARM64.HasSVE {
			features = append(features, "sve")
		}
	}
	return features, lanes
}
