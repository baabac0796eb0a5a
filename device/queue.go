package device

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// CommandType identifies the kind of command an Event belongs to.
type CommandType uint8

const (
	CommandWrite CommandType = iota
	CommandRead
	CommandFill
	CommandNDRange
)

// String returns the command name.
func (t CommandType) String() string {
	switch t {
	case CommandWrite:
		return "write"
	case CommandRead:
		return "read"
	case CommandFill:
		return "fill"
	case CommandNDRange:
		return "ndrange"
	default:
		return fmt.Sprintf("CommandType(%d)", t)
	}
}

// ErrProfilingDisabled is returned by Event.Profile on a queue created
// without profiling.
var ErrProfilingDisabled = errors.New("profiling not enabled on queue")

// Profile holds the timestamps of one command.
type Profile struct {
	Command   CommandType
	Queued    time.Time
	Submitted time.Time
	Started   time.Time
	Ended     time.Time
}

// Duration returns the execution time of the command.
func (p Profile) Duration() time.Duration {
	return p.Ended.Sub(p.Started)
}

// Latency returns the time between enqueueing and completion.
func (p Profile) Latency() time.Duration {
	return p.Ended.Sub(p.Queued)
}

// Event tracks the completion of one enqueued command.
type Event struct {
	profiling bool
	profile   Profile
	done      chan struct{}
	err       error
}

// Wait blocks until the command has completed and returns its error.
func (e *Event) Wait() error {
	<-e.done
	return e.err
}

// Done reports whether the command has completed.
func (e *Event) Done() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Profile returns the timestamps of the completed command.
func (e *Event) Profile() (Profile, error) {
	<-e.done
	if !e.profiling {
		return Profile{}, ErrProfilingDisabled
	}
	return e.profile, nil
}

type command struct {
	ev  *Event
	run func() error
}

// Queue executes commands in enqueue order on a single worker.
type Queue struct {
	ctx       *Context
	profiling bool

	mu      sync.Mutex
	cmds    chan command
	pending sync.WaitGroup
	closed  bool

	errMu sync.Mutex
	err   error

	stopped chan struct{}
}

// queueDepth bounds the number of commands waiting to execute.
const queueDepth = 64

// CreateQueue creates an in-order command queue. With profiling enabled,
// every Event records its timestamps.
func (c *Context) CreateQueue(profiling bool) (*Queue, error) {
	q := &Queue{
		ctx:       c,
		profiling: profiling,
		cmds:      make(chan command, queueDepth),
		stopped:   make(chan struct{}),
	}
	if err := c.addQueue(q); err != nil {
		return nil, &Error{Op: "create queue", Err: err}
	}
	go q.worker()
	return q, nil
}

// Profiling reports whether the queue records event timestamps.
func (q *Queue) Profiling() bool {
	return q.profiling
}

func (q *Queue) worker() {
	defer close(q.stopped)
	for cmd := range q.cmds {
		q.execute(cmd)
	}
}

func (q *Queue) execute(cmd command) {
	ev := cmd.ev
	if q.profiling {
		ev.profile.Submitted = time.Now()
	}
	err := q.ctx.alive()
	if err == nil {
		if q.profiling {
			ev.profile.Started = time.Now()
		}
		err = cmd.run()
		if q.profiling {
			ev.profile.Ended = time.Now()
		}
	}
	if err != nil {
		var devErr *Error
		if !errors.As(err, &devErr) {
			err = &Error{Op: ev.profile.Command.String(), Err: err}
		}
		q.errMu.Lock()
		if q.err == nil {
			q.err = err
		}
		q.errMu.Unlock()
	}
	ev.err = err
	close(ev.done)
	q.pending.Done()
}

func (q *Queue) enqueue(typ CommandType, run func() error) (*Event, error) {
	ev := &Event{profiling: q.profiling, done: make(chan struct{})}
	ev.profile.Command = typ
	if q.profiling {
		ev.profile.Queued = time.Now()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, &Error{Op: "enqueue " + typ.String(), Err: ErrContextLost}
	}
	q.pending.Add(1)
	q.cmds <- command{ev: ev, run: run}
	return ev, nil
}

// EnqueueWrite copies src into b at offset. A non-blocking write reads src
// when the command executes, so src must not change until the event completes.
func (q *Queue) EnqueueWrite(b *Buffer, blocking bool, offset int, src []byte) (*Event, error) {
	const op = "enqueue write"
	if _, err := b.span(q.ctx, offset, len(src)); err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	ev, err := q.enqueue(CommandWrite, func() error {
		dst, err := b.span(q.ctx, offset, len(src))
		if err != nil {
			return &Error{Op: op, Err: err}
		}
		copy(dst, src)
		return nil
	})
	return q.maybeWait(ev, err, blocking)
}

// EnqueueRead copies len(dst) bytes of b starting at offset into dst.
func (q *Queue) EnqueueRead(b *Buffer, blocking bool, offset int, dst []byte) (*Event, error) {
	const op = "enqueue read"
	if _, err := b.span(q.ctx, offset, len(dst)); err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	ev, err := q.enqueue(CommandRead, func() error {
		src, err := b.span(q.ctx, offset, len(dst))
		if err != nil {
			return &Error{Op: op, Err: err}
		}
		copy(dst, src)
		return nil
	})
	return q.maybeWait(ev, err, blocking)
}

// EnqueueFill sets size bytes of b starting at offset to value.
func (q *Queue) EnqueueFill(b *Buffer, value byte, offset, size int) (*Event, error) {
	const op = "enqueue fill"
	if _, err := b.span(q.ctx, offset, size); err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	return q.enqueue(CommandFill, func() error {
		dst, err := b.span(q.ctx, offset, size)
		if err != nil {
			return &Error{Op: op, Err: err}
		}
		for i := range dst {
			dst[i] = value
		}
		return nil
	})
}

// EnqueueNDRange dispatches k over global work-items in groups of local.
// A zero local size lets the device choose. Kernel arguments are captured
// at enqueue time.
func (q *Queue) EnqueueNDRange(k *Kernel, global, local int) (*Event, error) {
	const op = "enqueue ndrange"
	if k == nil || k.ctx != q.ctx {
		return nil, &Error{Op: op, Err: fmt.Errorf("%w: kernel not from this context", ErrInvalidArg)}
	}
	dev := q.ctx.device
	if global <= 0 {
		return nil, &Error{Op: op, Err: fmt.Errorf("%w: global size %d", ErrInvalidArg, global)}
	}
	if local < 0 || local > dev.MaxWorkGroupSize {
		return nil, &Error{Op: op, Err: fmt.Errorf("%w: local size %d exceeds %d", ErrInvalidArg, local, dev.MaxWorkGroupSize)}
	}
	if local == 0 {
		local = autoLocalSize(dev, global)
	}
	args, err := k.bind()
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	spec := k.spec
	return q.enqueue(CommandNDRange, func() error {
		return dispatch(dev, spec, args, global, local)
	})
}

func (q *Queue) maybeWait(ev *Event, err error, blocking bool) (*Event, error) {
	if err != nil || !blocking {
		return ev, err
	}
	return ev, ev.Wait()
}

// Finish blocks until every enqueued command has completed. It returns the
// first error raised since the previous Finish.
func (q *Queue) Finish() error {
	q.pending.Wait()
	q.errMu.Lock()
	err := q.err
	q.err = nil
	q.errMu.Unlock()
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if err == nil && closed {
		err = &Error{Op: "finish", Err: ErrContextLost}
	}
	return err
}

// Release drains the queue and stops its worker. Releasing twice is a no-op.
func (q *Queue) Release() {
	q.stop()
	q.ctx.removeQueue(q)
}

func (q *Queue) stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.stopped
		return
	}
	q.closed = true
	close(q.cmds)
	q.mu.Unlock()
	<-q.stopped
}

// autoLocalSize picks a work-group size that is a multiple of the device's
// preferred width and no larger than needed for global.
func autoLocalSize(dev *Device, global int) int {
	local := 256
	if m := dev.PreferredWorkGroupMultiple; m > 1 {
		local = (local / m) * m
	}
	if local > dev.MaxWorkGroupSize {
		local = dev.MaxWorkGroupSize
	}
	if global < local {
		local = global
	}
	return local
}

// dispatch runs spec over the NDRange with one goroutine per busy compute
// unit. Work-groups are claimed from a shared counter. A panic in any
// work-item aborts the dispatch with ErrKernelFault.
func dispatch(dev *Device, spec KernelSpec, args Args, global, local int) error {
	groups := (global + local - 1) / local
	units := dev.ComputeUnits
	if units < 1 {
		units = 1
	}
	if units > groups {
		units = groups
	}

	var (
		next   atomic.Int64
		failed atomic.Bool
		once   sync.Once
		fault  error
		wg     sync.WaitGroup
	)
	for u := 0; u < units; u++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					failed.Store(true)
					once.Do(func() {
						fault = &Error{Op: "kernel " + spec.Name, Err: fmt.Errorf("%w: %v\n%s", ErrKernelFault, r, debug.Stack())}
					})
				}
			}()
			wi := WorkItem{GlobalSize: global, LocalSize: local}
			if spec.Private != nil {
				wi.Private = spec.Private(args)
			}
			for !failed.Load() {
				g := int(next.Add(1) - 1)
				if g >= groups {
					return
				}
				wi.GroupID = g
				base := g * local
				for l := 0; l < local && base+l < global; l++ {
					wi.LocalID = l
					wi.GlobalID = base + l
					spec.Func(&wi, args)
				}
			}
		}()
	}
	wg.Wait()
	return fault
}
