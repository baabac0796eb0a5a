package device

import (
	"fmt"
	"sync"
)

// Context owns the device memory and programs of one session.
type Context struct {
	device *Device
	limit  uint64

	mu        sync.Mutex
	allocated uint64
	buffers   map[*Buffer]struct{}
	queues    map[*Queue]struct{}
	released  bool
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithMemoryLimit caps the total size of buffers the context may allocate.
// A zero limit keeps the device's GlobalMemSize.
func WithMemoryLimit(bytes uint64) ContextOption {
	return func(c *Context) {
		if bytes > 0 {
			c.limit = bytes
		}
	}
}

// NewContext creates a context on d.
func NewContext(d *Device, opts ...ContextOption) (*Context, error) {
	if d == nil {
		return nil, &Error{Op: "create context", Err: ErrNoDevice}
	}
	c := &Context{
		device:  d,
		limit:   d.GlobalMemSize,
		buffers: make(map[*Buffer]struct{}),
		queues:  make(map[*Queue]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Device returns the device of the context.
func (c *Context) Device() *Device {
	return c.device
}

// MemoryLimit returns the allocation limit in bytes.
func (c *Context) MemoryLimit() uint64 {
	return c.limit
}

// Allocated returns the bytes currently held by live buffers.
func (c *Context) Allocated() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allocated
}

// Released reports whether Release has been called.
func (c *Context) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

// Release frees every buffer and stops every queue of the context.
// Later operations on the context or its objects fail with ErrContextLost.
// Releasing twice is a no-op.
func (c *Context) Release() error {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return nil
	}
	c.released = true
	queues := make([]*Queue, 0, len(c.queues))
	for q := range c.queues {
		queues = append(queues, q)
	}
	for b := range c.buffers {
		b.data = nil
	}
	c.buffers = nil
	c.queues = nil
	c.allocated = 0
	c.mu.Unlock()

	for _, q := range queues {
		q.stop()
	}
	return nil
}

// CreateBuffer allocates size bytes of zeroed device memory.
func (c *Context) CreateBuffer(flags MemFlags, size int) (*Buffer, error) {
	const op = "create buffer"
	if size <= 0 {
		return nil, &Error{Op: op, Err: fmt.Errorf("%w: size %d", ErrInvalidArg, size)}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return nil, &Error{Op: op, Err: ErrContextLost}
	}
	if uint64(size) > c.limit || c.allocated > c.limit-uint64(size) {
		return nil, &Error{Op: op, Err: fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			ErrOutOfMemory, size, c.allocated, c.limit)}
	}
	b := &Buffer{ctx: c, flags: flags, data: make([]byte, size)}
	c.allocated += uint64(size)
	c.buffers[b] = struct{}{}
	return b, nil
}

func (c *Context) releaseBuffer(b *Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released || b.data == nil {
		return
	}
	c.allocated -= uint64(len(b.data))
	delete(c.buffers, b)
	b.data = nil
}

// bufferData returns the storage of b, or ErrContextLost once b or its
// context has been released.
func (c *Context) bufferData(b *Buffer) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released || b.data == nil {
		return nil, ErrContextLost
	}
	return b.data, nil
}

func (c *Context) addQueue(q *Queue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrContextLost
	}
	c.queues[q] = struct{}{}
	return nil
}

func (c *Context) removeQueue(q *Queue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queues != nil {
		delete(c.queues, q)
	}
}

func (c *Context) alive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrContextLost
	}
	return nil
}
