// Package engine owns the compute device session shared by match runners.
//
// An Engine is created once per process with Initialize: it selects a device,
// creates a context and a profiling command queue on it, and builds the match
// program. It holds no automaton or text; runners borrow it to allocate their
// buffers and dispatch kernels, and Close releases every device resource.
package engine

import (
	"fmt"
	"sync"

	"github.com/coregx/oclgrep/device"
	"github.com/coregx/oclgrep/internal/logging"
	"github.com/coregx/oclgrep/kernel"
)

// Config configures engine initialization.
type Config struct {
	// DeviceName selects the first device whose name contains it.
	// Empty selects the first device of DeviceType.
	DeviceName string

	// DeviceType is the kind of device to use.
	DeviceType device.Type

	// MemoryLimit caps device memory in bytes. Zero uses the device's
	// global memory size.
	MemoryLimit uint64

	// Logger receives verbose diagnostics. It may be nil.
	Logger *logging.Logger
}

// MinMemoryLimit is the smallest accepted non-zero MemoryLimit.
const MinMemoryLimit = 4 << 10

// DefaultConfig returns a configuration selecting any CPU device.
func DefaultConfig() Config {
	return Config{DeviceType: device.TypeCPU}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.DeviceType != device.TypeCPU && c.DeviceType != device.TypeAccelerator {
		return &ConfigError{Field: "DeviceType", Message: fmt.Sprintf("unknown device type %d", c.DeviceType)}
	}
	if c.MemoryLimit != 0 && c.MemoryLimit < MinMemoryLimit {
		return &ConfigError{Field: "MemoryLimit", Message: fmt.Sprintf("must be 0 or at least %d bytes", MinMemoryLimit)}
	}
	return nil
}

// ConfigError represents an invalid configuration parameter.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "engine: invalid config: " + e.Field + ": " + e.Message
}

// Engine is an initialized device session.
//
// An Engine may be shared by several runners, but its queue is in-order and
// unsynchronized across runners: runners sharing an engine must not run
// concurrently.
type Engine struct {
	dev     *device.Device
	ctx     *device.Context
	queue   *device.Queue
	program *device.Program
	log     *logging.Logger

	mu     sync.Mutex
	closed bool
}

// Initialize selects a device and prepares it for matching.
// Device failures are *device.Error values.
func Initialize(cfg Config) (*Engine, error) {
	return initialize(cfg, kernel.Source())
}

func initialize(cfg Config, src device.Source) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	log.Section("device")

	dev, err := device.Find(cfg.DeviceName, cfg.DeviceType)
	if err != nil {
		return nil, err
	}
	log.Log("device: %s", dev)

	ctx, err := device.NewContext(dev, device.WithMemoryLimit(cfg.MemoryLimit))
	if err != nil {
		return nil, err
	}
	log.Log("memory limit: %d bytes", ctx.MemoryLimit())

	queue, err := ctx.CreateQueue(true)
	if err != nil {
		_ = ctx.Release()
		return nil, err
	}

	program, err := ctx.CreateProgram(src)
	if err != nil {
		_ = ctx.Release()
		return nil, err
	}
	if err := program.Build(); err != nil {
		log.Log("build log:\n%s", program.BuildLog())
		_ = ctx.Release()
		return nil, err
	}
	log.Log("program %q built: kernels %v", src.Name, program.KernelNames())

	return &Engine{
		dev:     dev,
		ctx:     ctx,
		queue:   queue,
		program: program,
		log:     log,
	}, nil
}

// NewKernel returns a fresh kernel object for the named kernel of the match
// program.
func (e *Engine) NewKernel(name string) (*device.Kernel, error) {
	if err := e.alive("new kernel"); err != nil {
		return nil, err
	}
	return e.program.CreateKernel(name)
}

// Device returns the selected device.
func (e *Engine) Device() *device.Device {
	return e.dev
}

// Context returns the device context.
func (e *Engine) Context() *device.Context {
	return e.ctx
}

// Queue returns the profiling command queue.
func (e *Engine) Queue() *device.Queue {
	return e.queue
}

// Logger returns the engine's logger, which may be nil.
func (e *Engine) Logger() *logging.Logger {
	return e.log
}

// Close releases the device context and everything allocated from it.
// Runners still holding the engine fail with device.ErrContextLost.
// Closing twice is a no-op.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.log.Log("releasing device context")
	return e.ctx.Release()
}

func (e *Engine) alive(op string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return &device.Error{Op: op, Err: device.ErrContextLost}
	}
	return nil
}
