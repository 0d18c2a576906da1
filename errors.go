package redseafs

import "fmt"

// DriverError is the error type most engine and adapter operations return.
// It behaves like a sentinel [Errno] that can carry extra context without
// losing its identity for [errors.Is].
type DriverError interface {
	error
	Unwrap() error
	// WithMessage returns a copy of the error with extra context appended to
	// its message.
	WithMessage(message string) DriverError
	// Wrap attaches an underlying error as the cause, for [errors.Is]/[errors.As].
	Wrap(err error) DriverError
}

// Errno is a sentinel driver error, analogous to a POSIX errno value. The
// zero value is not a valid error.
type Errno string

func (e Errno) Error() string { return string(e) }

func (e Errno) Unwrap() error { return nil }

func (e Errno) WithMessage(message string) DriverError {
	return &wrappedError{errno: e, message: fmt.Sprintf("%s: %s", string(e), message)}
}

func (e Errno) Wrap(err error) DriverError {
	return &wrappedError{errno: e, message: fmt.Sprintf("%s: %s", string(e), err.Error()), cause: err}
}

// Sentinel error kinds surfaced by the engine, in domain terms (see spec §7).
const (
	// ErrInvalidVolume indicates the boot record's signatures didn't match.
	ErrInvalidVolume = Errno("invalid volume")
	// ErrNotFound indicates lookup() could not match a name.
	ErrNotFound = Errno("no such file or directory")
	// ErrReadOnlyFileSystem indicates a mutation was attempted on a
	// read-only mount.
	ErrReadOnlyFileSystem = Errno("read-only file system")
	// ErrNoSpace indicates allocation or directory growth failed.
	ErrNoSpace = Errno("no space left on device")
	// ErrNotPermitted indicates a read on a write-only cookie or vice versa.
	ErrNotPermitted = Errno("operation not permitted")
	// ErrBufferOverflow indicates a read_dir target buffer was too small.
	ErrBufferOverflow = Errno("buffer too small for entry name")
	// ErrIO indicates a short read/write at the block I/O layer.
	ErrIO = Errno("input/output error")
	// ErrExists indicates a create/mkdir target name is already in use.
	ErrExists = Errno("file exists")
	ErrNotADirectory = Errno("not a directory")
	ErrIsADirectory  = Errno("is a directory")
	ErrInvalidArgument = Errno("invalid argument")
	ErrNameTooLong     = Errno("file name too long")
	ErrNotEmpty        = Errno("directory not empty")
)

type wrappedError struct {
	errno   Errno
	message string
	cause   error
}

func (e *wrappedError) Error() string { return e.message }

func (e *wrappedError) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return e.errno
}

func (e *wrappedError) WithMessage(message string) DriverError {
	return &wrappedError{
		errno:   e.errno,
		message: fmt.Sprintf("%s: %s", e.message, message),
		cause:   e,
	}
}

func (e *wrappedError) Wrap(err error) DriverError {
	return &wrappedError{
		errno:   e.errno,
		message: fmt.Sprintf("%s: %s", e.message, err.Error()),
		cause:   err,
	}
}

// Is lets errors.Is(err, redseafs.ErrNotFound) succeed even when err carries
// extra context via WithMessage/Wrap.
func (e *wrappedError) Is(target error) bool {
	if other, ok := target.(Errno); ok {
		return e.errno == other
	}
	return false
}
