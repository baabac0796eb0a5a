package device

import "fmt"

// MemFlags describes how kernels access a buffer.
type MemFlags uint8

const (
	// MemReadWrite buffers are read and written by kernels.
	MemReadWrite MemFlags = iota
	// MemReadOnly buffers are only read by kernels.
	MemReadOnly
	// MemWriteOnly buffers are only written by kernels.
	MemWriteOnly
)

// String returns the flag name.
func (f MemFlags) String() string {
	switch f {
	case MemReadWrite:
		return "READ_WRITE"
	case MemReadOnly:
		return "READ_ONLY"
	case MemWriteOnly:
		return "WRITE_ONLY"
	default:
		return fmt.Sprintf("MemFlags(%d)", f)
	}
}

// Buffer is a region of device memory.
type Buffer struct {
	ctx   *Context
	flags MemFlags
	data  []byte
}

// Size returns the buffer size in bytes, or 0 once released.
func (b *Buffer) Size() int {
	data, err := b.ctx.bufferData(b)
	if err != nil {
		return 0
	}
	return len(data)
}

// Flags returns the access flags of the buffer.
func (b *Buffer) Flags() MemFlags {
	return b.flags
}

// Context returns the context that owns the buffer.
func (b *Buffer) Context() *Context {
	return b.ctx
}

// Release returns the buffer's memory to its context. Releasing twice is a
// no-op.
func (b *Buffer) Release() {
	b.ctx.releaseBuffer(b)
}

// span checks that [offset, offset+size) lies inside the buffer and returns it.
func (b *Buffer) span(ctx *Context, offset, size int) ([]byte, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil buffer", ErrInvalidArg)
	}
	if b.ctx != ctx {
		return nil, fmt.Errorf("%w: buffer belongs to another context", ErrInvalidArg)
	}
	data, err := ctx.bufferData(b)
	if err != nil {
		return nil, err
	}
	if offset < 0 || size < 0 || offset > len(data) || size > len(data)-offset {
		return nil, fmt.Errorf("%w: range [%d, %d) outside buffer of %d bytes",
			ErrInvalidArg, offset, offset+size, len(data))
	}
	return data[offset : offset+size], nil
}
