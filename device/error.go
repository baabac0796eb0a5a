package device

import "errors"

// Device errors. All are fatal to the session that observes them.
var (
	// ErrNoDevice indicates that no suitable compute device is available
	ErrNoDevice = errors.New("no suitable compute device")

	// ErrBuildProgram indicates that a program failed to build
	ErrBuildProgram = errors.New("program build failure")

	// ErrOutOfMemory indicates that a buffer allocation exceeds device memory
	ErrOutOfMemory = errors.New("device out of memory")

	// ErrContextLost indicates use of a released context, queue or buffer
	ErrContextLost = errors.New("device context lost")

	// ErrKernelFault indicates that a work-item faulted during execution
	ErrKernelFault = errors.New("kernel fault")

	// ErrInvalidArg indicates an invalid argument to a device operation
	ErrInvalidArg = errors.New("invalid argument")
)

// Error reports a failed device operation.
type Error struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	return "device: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}
