// Package runner evaluates an automaton against windows of text on a compute
// device.
//
// A Runner uploads its automaton once and then, for every window passed to
// Run, uploads the window, dispatches the match kernel over the candidate
// start offsets and downloads the matching offsets. Runs are independent:
// nothing but the automaton survives from one Run to the next.
package runner

import (
	"fmt"
	"time"

	"github.com/coregx/oclgrep/automaton"
	"github.com/coregx/oclgrep/device"
	"github.com/coregx/oclgrep/engine"
	"github.com/coregx/oclgrep/internal/conv"
	"github.com/coregx/oclgrep/internal/logging"
	"github.com/coregx/oclgrep/kernel"
)

// Runner matches one automaton against successive windows.
// A Runner is not safe for concurrent use.
type Runner struct {
	eng *engine.Engine
	a   *automaton.Automaton
	cfg Config
	log *logging.Logger

	kernel     *device.Kernel
	automatonB *device.Buffer
	windowB    *device.Buffer
	candB      *device.Buffer
	resultB    *device.Buffer
	pre        *prefilter

	// host staging, reused across runs
	window  kernel.Window
	cand    []byte
	results []byte

	profiles []Profile
	closed   bool
}

// New prepares a runner for a on eng and uploads the automaton.
// A nil automaton or invalid configuration is a *ConfigError; device
// failures are *device.Error values.
func New(eng *engine.Engine, a *automaton.Automaton, cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &ConfigError{Field: "Automaton", Message: "must not be nil"}
	}
	k, err := eng.NewKernel(kernel.MatchKernel)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		eng:    eng,
		a:      a,
		cfg:    cfg,
		log:    eng.Logger(),
		kernel: k,
	}
	if cfg.Prefilter {
		if r.pre, err = newPrefilter(a); err != nil {
			return nil, &device.Error{Op: "build prefilter", Err: err}
		}
	}
	if err := r.allocate(); err != nil {
		r.release()
		return nil, err
	}
	return r, nil
}

func (r *Runner) allocate() error {
	ctx := r.eng.Context()
	q := r.eng.Queue()
	size := r.cfg.MaxWindowSize

	var err error
	if r.automatonB, err = ctx.CreateBuffer(device.MemReadOnly, r.a.SizeBytes()); err != nil {
		return err
	}
	if r.windowB, err = ctx.CreateBuffer(device.MemReadOnly, size*4); err != nil {
		return err
	}
	if r.resultB, err = ctx.CreateBuffer(device.MemWriteOnly, size); err != nil {
		return err
	}
	candSize := 4
	if r.pre != nil {
		candSize = size * 4
	}
	if r.candB, err = ctx.CreateBuffer(device.MemReadOnly, candSize); err != nil {
		return err
	}

	if _, err := q.EnqueueWrite(r.automatonB, true, 0, r.a.Bytes()); err != nil {
		return err
	}

	args := []struct {
		i int
		v any
	}{
		{kernel.ArgAutomaton, r.automatonB},
		{kernel.ArgStates, r.a.N()},
		{kernel.ArgFanOut, r.a.FanOut()},
		{kernel.ArgWindow, r.windowB},
		{kernel.ArgCandidates, r.candB},
		{kernel.ArgResults, r.resultB},
	}
	for _, arg := range args {
		if err := r.kernel.SetArg(arg.i, arg.v); err != nil {
			return err
		}
	}

	r.log.Section("runner")
	r.log.Log("automaton: %s, %d bytes uploaded", r.a, r.a.SizeBytes())
	r.log.Log("window capacity: %d code points, device memory in use: %d bytes", size, ctx.Allocated())
	if r.pre != nil {
		r.log.Log("prefilter: %d first symbols", r.pre.symbols)
	} else {
		r.log.Log("prefilter: off")
	}
	return nil
}

// Run returns the offsets of window, in ascending order, at which a match
// begins. The result is freshly allocated. Elements outside
// [0, unicode.MaxRune] are not code points and never match. A window longer
// than MaxWindowSize is a *ConfigError. Any device failure discards the
// partial result.
func (r *Runner) Run(window []rune) ([]int, error) {
	if r.closed {
		return nil, &device.Error{Op: "run", Err: device.ErrContextLost}
	}
	if len(window) > r.cfg.MaxWindowSize {
		return nil, &ConfigError{
			Field:   "window",
			Message: fmt.Sprintf("%d code points exceed MaxWindowSize %d", len(window), r.cfg.MaxWindowSize),
		}
	}
	if len(window) == 0 {
		return nil, nil
	}

	var p Profile
	begin := time.Now()
	p.WindowSize = len(window)

	q := r.eng.Queue()
	r.window = kernel.EncodeWindow(r.window[:0], window)
	length := conv.IntToUint32(len(window))

	var events []*device.Event
	ev, err := q.EnqueueWrite(r.windowB, false, 0, r.window)
	if err != nil {
		return nil, err
	}
	events = append(events, ev)

	mode := uint32(0)
	global := len(window)
	if r.pre != nil {
		scan := time.Now()
		var n int
		r.cand, n = r.pre.candidates(r.cand[:0], r.window)
		p.Prefilter = time.Since(scan)
		if n == 0 {
			if err := q.Finish(); err != nil {
				return nil, err
			}
			r.record(p, begin, events)
			return nil, nil
		}
		if ev, err = q.EnqueueWrite(r.candB, false, 0, r.cand); err != nil {
			return nil, err
		}
		events = append(events, ev)
		if ev, err = q.EnqueueFill(r.resultB, 0, 0, len(window)); err != nil {
			return nil, err
		}
		events = append(events, ev)
		mode, global = 1, n
	}
	p.WorkItems = global

	if err := r.kernel.SetArg(kernel.ArgLength, length); err != nil {
		return nil, err
	}
	if err := r.kernel.SetArg(kernel.ArgCandidateMode, mode); err != nil {
		return nil, err
	}
	if ev, err = q.EnqueueNDRange(r.kernel, global, 0); err != nil {
		return nil, err
	}
	events = append(events, ev)

	if cap(r.results) < len(window) {
		r.results = make([]byte, len(window))
	}
	host := r.results[:len(window)]
	if ev, err = q.EnqueueRead(r.resultB, false, 0, host); err != nil {
		return nil, err
	}
	events = append(events, ev)

	if err := q.Finish(); err != nil {
		return nil, err
	}

	var out []int
	for i, b := range host {
		if b == kernel.Matched {
			out = append(out, i)
		}
	}
	r.record(p, begin, events)
	return out, nil
}

// record completes p from the command events and keeps it when profiling.
func (r *Runner) record(p Profile, begin time.Time, events []*device.Event) {
	if !r.cfg.Profiling {
		return
	}
	for _, ev := range events {
		ep, err := ev.Profile()
		if err != nil {
			continue
		}
		switch ep.Command {
		case device.CommandWrite, device.CommandFill:
			p.Upload += ep.Duration()
		case device.CommandNDRange:
			p.Kernel += ep.Duration()
		case device.CommandRead:
			p.Download += ep.Duration()
		}
	}
	p.Total = time.Since(begin)
	r.profiles = append(r.profiles, p)
	r.log.Log("run: %s", p)
}

// Profiles returns the profile of every Run since the runner was created
// or last drained, or nil when profiling is disabled. Profiles are retained
// until TakeProfiles is called.
func (r *Runner) Profiles() []Profile {
	return r.profiles
}

// TakeProfiles returns the recorded profiles and forgets them.
func (r *Runner) TakeProfiles() []Profile {
	ps := r.profiles
	r.profiles = nil
	return ps
}

// Automaton returns the automaton the runner matches.
func (r *Runner) Automaton() *automaton.Automaton {
	return r.a
}

// Config returns the runner configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

// Close releases the device buffers of the runner. The engine stays usable.
// Closing twice is a no-op.
func (r *Runner) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.release()
}

func (r *Runner) release() {
	for _, b := range []*device.Buffer{r.automatonB, r.windowB, r.candB, r.resultB} {
		if b != nil {
			b.Release()
		}
	}
}
