package device

import (
	"fmt"
	"strings"
)

// WorkItem identifies one invocation of a kernel within an NDRange.
type WorkItem struct {
	GlobalID   int
	LocalID    int
	GroupID    int
	GlobalSize int
	LocalSize  int

	// Private is the scratch memory of the executing compute unit, created by
	// KernelSpec.Private. It is reused by every work-item the unit runs.
	Private any
}

// KernelFunc is the body of a kernel, executed once per work-item.
type KernelFunc func(wi *WorkItem, args Args)

// KernelSpec declares one kernel of a program.
type KernelSpec struct {
	Name string

	// Params names the kernel parameters in order. Their count is the arity
	// enforced by SetArg and dispatch.
	Params []string

	Func KernelFunc

	// Private allocates per-compute-unit scratch memory for a dispatch.
	// It may be nil.
	Private func(args Args) any
}

// Source is the unbuilt text of a program: a named set of kernels.
type Source struct {
	Name    string
	Kernels []KernelSpec
}

// Program is a set of kernels compiled for a context.
type Program struct {
	ctx      *Context
	source   Source
	kernels  map[string]KernelSpec
	buildLog string
	built    bool
}

// CreateProgram creates an unbuilt program from src.
func (c *Context) CreateProgram(src Source) (*Program, error) {
	if err := c.alive(); err != nil {
		return nil, &Error{Op: "create program", Err: err}
	}
	return &Program{ctx: c, source: src}, nil
}

// Build checks every kernel of the program and makes them available to
// CreateKernel. On failure the reasons are kept in BuildLog.
func (p *Program) Build() error {
	if err := p.ctx.alive(); err != nil {
		return &Error{Op: "build program", Err: err}
	}
	var log strings.Builder
	kernels := make(map[string]KernelSpec, len(p.source.Kernels))
	for i, k := range p.source.Kernels {
		switch {
		case k.Name == "":
			fmt.Fprintf(&log, "kernel %d: missing name\n", i)
		case k.Func == nil:
			fmt.Fprintf(&log, "kernel %s: missing body\n", k.Name)
		default:
			if _, dup := kernels[k.Name]; dup {
				fmt.Fprintf(&log, "kernel %s: redefinition\n", k.Name)
				continue
			}
			kernels[k.Name] = k
		}
	}
	if len(p.source.Kernels) == 0 {
		fmt.Fprintf(&log, "program %q defines no kernels\n", p.source.Name)
	}
	p.buildLog = log.String()
	if p.buildLog != "" {
		return &Error{Op: "build program", Err: fmt.Errorf("%w: %s", ErrBuildProgram, strings.TrimSpace(p.buildLog))}
	}
	p.kernels = kernels
	p.built = true
	return nil
}

// BuildLog returns the diagnostics of the last Build.
func (p *Program) BuildLog() string {
	return p.buildLog
}

// KernelNames returns the kernels of the program in source order.
func (p *Program) KernelNames() []string {
	names := make([]string, 0, len(p.source.Kernels))
	for _, k := range p.source.Kernels {
		names = append(names, k.Name)
	}
	return names
}

// CreateKernel returns a kernel object with no arguments set.
func (p *Program) CreateKernel(name string) (*Kernel, error) {
	const op = "create kernel"
	if !p.built {
		return nil, &Error{Op: op, Err: fmt.Errorf("%w: program %q is not built", ErrInvalidArg, p.source.Name)}
	}
	spec, ok := p.kernels[name]
	if !ok {
		return nil, &Error{Op: op, Err: fmt.Errorf("%w: no kernel %q in program %q", ErrInvalidArg, name, p.source.Name)}
	}
	return &Kernel{
		ctx:  p.ctx,
		spec: spec,
		args: make([]any, len(spec.Params)),
	}, nil
}

// Kernel is a kernel with its argument bindings.
// Arguments are captured when the kernel is enqueued, so they may be rebound
// for the next dispatch while earlier ones are still pending.
type Kernel struct {
	ctx  *Context
	spec KernelSpec
	args []any
}

// Name returns the kernel name.
func (k *Kernel) Name() string {
	return k.spec.Name
}

// SetArg binds parameter i to a *Buffer or a uint32 scalar.
func (k *Kernel) SetArg(i int, v any) error {
	const op = "set kernel arg"
	if i < 0 || i >= len(k.args) {
		return &Error{Op: op, Err: fmt.Errorf("%w: kernel %s has %d parameters, index %d", ErrInvalidArg, k.spec.Name, len(k.args), i)}
	}
	switch v := v.(type) {
	case *Buffer:
		if v == nil || v.ctx != k.ctx {
			return &Error{Op: op, Err: fmt.Errorf("%w: %s: buffer not from this context", ErrInvalidArg, k.spec.Params[i])}
		}
	case uint32:
	default:
		return &Error{Op: op, Err: fmt.Errorf("%w: %s: unsupported type %T", ErrInvalidArg, k.spec.Params[i], v)}
	}
	k.args[i] = v
	return nil
}

// bind resolves the kernel arguments to a snapshot usable by work-items.
func (k *Kernel) bind() (Args, error) {
	args := Args{values: make([]any, len(k.args))}
	for i, v := range k.args {
		switch v := v.(type) {
		case nil:
			return Args{}, fmt.Errorf("%w: kernel %s: argument %d (%s) not set", ErrInvalidArg, k.spec.Name, i, k.spec.Params[i])
		case *Buffer:
			data, err := k.ctx.bufferData(v)
			if err != nil {
				return Args{}, err
			}
			args.values[i] = data
		default:
			args.values[i] = v
		}
	}
	return args, nil
}

// Args are the bound arguments of a dispatch as seen by work-items.
type Args struct {
	values []any
}

// Len returns the number of arguments.
func (a Args) Len() int {
	return len(a.values)
}

// Buffer returns the memory of buffer argument i.
// It panics if argument i is not a buffer.
func (a Args) Buffer(i int) []byte {
	return a.values[i].([]byte)
}

// Uint32 returns scalar argument i.
// It panics if argument i is not a uint32.
func (a Args) Uint32(i int) uint32 {
	return a.values[i].(uint32)
}
