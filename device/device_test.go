package device

import (
	"encoding/binary"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
)

func testDevice() *Device {
	return &Device{
		Name:                       "test",
		Type:                       TypeCPU,
		ComputeUnits:               4,
		MaxWorkGroupSize:           DefaultMaxWorkGroupSize,
		PreferredWorkGroupMultiple: 4,
		GlobalMemSize:              1 << 20,
	}
}

func newTestContext(t *testing.T, opts ...ContextOption) *Context {
	t.Helper()
	ctx, err := NewContext(testDevice(), opts...)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(func() { _ = ctx.Release() })
	return ctx
}

// squareSource writes gid*gid for every work-item into buffer 0.
var squareSource = Source{
	Name: "square",
	Kernels: []KernelSpec{{
		Name:   "square",
		Params: []string{"out", "scale"},
		Func: func(wi *WorkItem, args Args) {
			out := args.Buffer(0)
			v := uint32(wi.GlobalID*wi.GlobalID) * args.Uint32(1)
			binary.LittleEndian.PutUint32(out[wi.GlobalID*4:], v)
		},
	}},
}

func buildKernel(t *testing.T, ctx *Context, src Source, name string) *Kernel {
	t.Helper()
	prog, err := ctx.CreateProgram(src)
	if err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}
	if err := prog.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	k, err := prog.CreateKernel(name)
	if err != nil {
		t.Fatalf("CreateKernel: %v", err)
	}
	return k
}

func TestDevices(t *testing.T) {
	devs := Devices()
	if len(devs) == 0 {
		t.Fatal("no devices")
	}
	d := devs[0]
	if d.ComputeUnits < 1 {
		t.Errorf("ComputeUnits = %d", d.ComputeUnits)
	}
	if d.GlobalMemSize == 0 {
		t.Error("GlobalMemSize = 0")
	}
	if d.PreferredWorkGroupMultiple < 1 {
		t.Errorf("PreferredWorkGroupMultiple = %d", d.PreferredWorkGroupMultiple)
	}
	if !strings.Contains(d.String(), d.Name) {
		t.Errorf("String() = %q", d.String())
	}
}

func TestFind(t *testing.T) {
	if _, err := Find("", TypeCPU); err != nil {
		t.Fatalf("Find any CPU: %v", err)
	}
	tests := []struct {
		name string
		typ  Type
	}{
		{"", TypeAccelerator},
		{"no-such-device", TypeCPU},
	}
	for _, tt := range tests {
		_, err := Find(tt.name, tt.typ)
		if !errors.Is(err, ErrNoDevice) {
			t.Errorf("Find(%q, %v) error = %v, want ErrNoDevice", tt.name, tt.typ, err)
		}
	}
}

func TestNewContext_NilDevice(t *testing.T) {
	if _, err := NewContext(nil); !errors.Is(err, ErrNoDevice) {
		t.Errorf("error = %v, want ErrNoDevice", err)
	}
}

func TestCreateBuffer(t *testing.T) {
	ctx := newTestContext(t, WithMemoryLimit(100))

	b, err := ctx.CreateBuffer(MemReadWrite, 60)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if b.Size() != 60 || ctx.Allocated() != 60 {
		t.Errorf("Size = %d, Allocated = %d", b.Size(), ctx.Allocated())
	}

	if _, err := ctx.CreateBuffer(MemReadOnly, 41); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("over limit: error = %v, want ErrOutOfMemory", err)
	}
	if _, err := ctx.CreateBuffer(MemReadOnly, 0); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("zero size: error = %v, want ErrInvalidArg", err)
	}

	b.Release()
	b.Release()
	if ctx.Allocated() != 0 {
		t.Errorf("Allocated after release = %d", ctx.Allocated())
	}
	if _, err := ctx.CreateBuffer(MemReadOnly, 100); err != nil {
		t.Errorf("full-size buffer after release: %v", err)
	}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		src  Source
		want string
	}{
		{"empty", Source{Name: "p"}, "defines no kernels"},
		{"unnamed", Source{Kernels: []KernelSpec{{Func: squareSource.Kernels[0].Func}}}, "missing name"},
		{"no body", Source{Kernels: []KernelSpec{{Name: "k"}}}, "missing body"},
		{"duplicate", Source{Kernels: []KernelSpec{squareSource.Kernels[0], squareSource.Kernels[0]}}, "redefinition"},
	}
	ctx := newTestContext(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := ctx.CreateProgram(tt.src)
			if err != nil {
				t.Fatalf("CreateProgram: %v", err)
			}
			err = prog.Build()
			if !errors.Is(err, ErrBuildProgram) {
				t.Fatalf("Build error = %v, want ErrBuildProgram", err)
			}
			if !strings.Contains(prog.BuildLog(), tt.want) {
				t.Errorf("BuildLog = %q, want %q", prog.BuildLog(), tt.want)
			}
			if _, err := prog.CreateKernel("k"); !errors.Is(err, ErrInvalidArg) {
				t.Errorf("CreateKernel on failed build: %v", err)
			}
		})
	}
}

func TestSetArg(t *testing.T) {
	ctx := newTestContext(t)
	other := newTestContext(t)
	k := buildKernel(t, ctx, squareSource, "square")
	foreign, err := other.CreateBuffer(MemReadWrite, 4)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		i    int
		v    any
	}{
		{"index too large", 2, uint32(1)},
		{"negative index", -1, uint32(1)},
		{"unsupported type", 1, 1.5},
		{"foreign buffer", 0, foreign},
	}
	for _, tt := range tests {
		if err := k.SetArg(tt.i, tt.v); !errors.Is(err, ErrInvalidArg) {
			t.Errorf("%s: error = %v, want ErrInvalidArg", tt.name, err)
		}
	}
}

func TestNDRange(t *testing.T) {
	ctx := newTestContext(t)
	q, err := ctx.CreateQueue(true)
	if err != nil {
		t.Fatal(err)
	}
	k := buildKernel(t, ctx, squareSource, "square")

	const global = 1000
	out, err := ctx.CreateBuffer(MemWriteOnly, global*4)
	if err != nil {
		t.Fatal(err)
	}
	if err := k.SetArg(0, out); err != nil {
		t.Fatal(err)
	}
	if err := k.SetArg(1, uint32(3)); err != nil {
		t.Fatal(err)
	}

	for _, local := range []int{0, 1, 7, 64, 1000} {
		if _, err := q.EnqueueFill(out, 0xff, 0, global*4); err != nil {
			t.Fatal(err)
		}
		ev, err := q.EnqueueNDRange(k, global, local)
		if err != nil {
			t.Fatalf("local %d: EnqueueNDRange: %v", local, err)
		}
		host := make([]byte, global*4)
		if _, err := q.EnqueueRead(out, true, 0, host); err != nil {
			t.Fatalf("local %d: EnqueueRead: %v", local, err)
		}
		for i := 0; i < global; i++ {
			if got, want := binary.LittleEndian.Uint32(host[i*4:]), uint32(i*i*3); got != want {
				t.Fatalf("local %d: out[%d] = %d, want %d", local, i, got, want)
			}
		}
		p, err := ev.Profile()
		if err != nil {
			t.Fatalf("Profile: %v", err)
		}
		if p.Command != CommandNDRange || p.Ended.Before(p.Started) || p.Started.Before(p.Queued) {
			t.Errorf("local %d: bad profile %+v", local, p)
		}
	}
	if err := q.Finish(); err != nil {
		t.Errorf("Finish: %v", err)
	}
}

func TestNDRange_InvalidArgs(t *testing.T) {
	ctx := newTestContext(t)
	q, err := ctx.CreateQueue(false)
	if err != nil {
		t.Fatal(err)
	}
	k := buildKernel(t, ctx, squareSource, "square")

	if _, err := q.EnqueueNDRange(k, 10, 0); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("unset args: error = %v, want ErrInvalidArg", err)
	}
	out, _ := ctx.CreateBuffer(MemWriteOnly, 40)
	_ = k.SetArg(0, out)
	_ = k.SetArg(1, uint32(1))
	if _, err := q.EnqueueNDRange(k, 0, 0); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("zero global: error = %v, want ErrInvalidArg", err)
	}
	if _, err := q.EnqueueNDRange(k, 10, DefaultMaxWorkGroupSize+1); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("oversized local: error = %v, want ErrInvalidArg", err)
	}
	if _, err := q.EnqueueRead(out, true, 36, make([]byte, 8)); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("read past end: error = %v, want ErrInvalidArg", err)
	}
	ev, err := q.EnqueueWrite(out, true, 0, make([]byte, 4))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ev.Profile(); !errors.Is(err, ErrProfilingDisabled) {
		t.Errorf("Profile without profiling: %v", err)
	}
}

func TestNDRange_KernelFault(t *testing.T) {
	ctx := newTestContext(t)
	q, err := ctx.CreateQueue(false)
	if err != nil {
		t.Fatal(err)
	}
	var ran atomic.Int64
	src := Source{Name: "fault", Kernels: []KernelSpec{{
		Name: "fault",
		Func: func(wi *WorkItem, args Args) {
			ran.Add(1)
			if wi.GlobalID == 17 {
				var s []int
				_ = s[wi.GlobalID]
			}
		},
	}}}
	k := buildKernel(t, ctx, src, "fault")
	ev, err := q.EnqueueNDRange(k, 100000, 64)
	if err != nil {
		t.Fatal(err)
	}
	if err := ev.Wait(); !errors.Is(err, ErrKernelFault) {
		t.Errorf("Wait error = %v, want ErrKernelFault", err)
	}
	if err := q.Finish(); !errors.Is(err, ErrKernelFault) {
		t.Errorf("Finish error = %v, want ErrKernelFault", err)
	}
	if err := q.Finish(); err != nil {
		t.Errorf("second Finish error = %v, want nil", err)
	}
}

func TestPrivateScratch(t *testing.T) {
	ctx := newTestContext(t)
	q, err := ctx.CreateQueue(false)
	if err != nil {
		t.Fatal(err)
	}
	var allocs atomic.Int64
	src := Source{Name: "private", Kernels: []KernelSpec{{
		Name:   "count",
		Params: []string{"out"},
		Private: func(Args) any {
			allocs.Add(1)
			return new(int)
		},
		Func: func(wi *WorkItem, args Args) {
			*wi.Private.(*int)++
			args.Buffer(0)[wi.GlobalID] = 1
		},
	}}}
	k := buildKernel(t, ctx, src, "count")
	out, _ := ctx.CreateBuffer(MemWriteOnly, 4096)
	_ = k.SetArg(0, out)
	if _, err := q.EnqueueNDRange(k, 4096, 16); err != nil {
		t.Fatal(err)
	}
	if err := q.Finish(); err != nil {
		t.Fatal(err)
	}
	if n := allocs.Load(); n < 1 || n > int64(ctx.Device().ComputeUnits) {
		t.Errorf("private allocations = %d, want 1..%d", n, ctx.Device().ComputeUnits)
	}
}

func TestContextRelease(t *testing.T) {
	ctx, err := NewContext(testDevice())
	if err != nil {
		t.Fatal(err)
	}
	q, err := ctx.CreateQueue(false)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ctx.CreateBuffer(MemReadWrite, 16)
	if err != nil {
		t.Fatal(err)
	}
	if err := ctx.Release(); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}

	if _, err := ctx.CreateBuffer(MemReadWrite, 16); !errors.Is(err, ErrContextLost) {
		t.Errorf("CreateBuffer: %v, want ErrContextLost", err)
	}
	if _, err := q.EnqueueWrite(b, true, 0, make([]byte, 4)); !errors.Is(err, ErrContextLost) {
		t.Errorf("EnqueueWrite: %v, want ErrContextLost", err)
	}
	if err := q.Finish(); !errors.Is(err, ErrContextLost) {
		t.Errorf("Finish: %v, want ErrContextLost", err)
	}
	if _, err := ctx.CreateQueue(false); !errors.Is(err, ErrContextLost) {
		t.Errorf("CreateQueue: %v, want ErrContextLost", err)
	}
	if b.Size() != 0 {
		t.Errorf("released buffer Size = %d", b.Size())
	}
}

func TestError(t *testing.T) {
	err := &Error{Op: "create buffer", Err: ErrOutOfMemory}
	if got, want := err.Error(), "device: create buffer: device out of memory"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrOutOfMemory) {
		t.Error("errors.Is(err, ErrOutOfMemory) = false")
	}
}
