// Package errs maps 9P protocol errors — the legacy/9P2000.u Rerror
// string and the 9P2000.L Rlerror numeric errno — onto POSIX error
// values, and layers a small typed-error hierarchy for transport and
// codec failures that never reach the wire.
//
// The canonical-message table is grounded on the same dictionary the
// Linux 9P client (net/9p/error.c) and this module's OSv ancestor
// carry; unlike the ancestor's C map (indexed by string-pointer
// identity, a bug this rewrite avoids on purpose), a Go
// map[string]unix.Errno is value-keyed by construction, so decoded
// strings compare correctly without deduplicating pointers.
package errs

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Errno is a POSIX error number.
type Errno = unix.Errno

// ProtocolError wraps a reply the client could not make sense of: an
// unrecognized message type, or a well-formed reply whose contents
// violate the protocol's invariants (e.g. Rwalk returning
// more qids than requested).
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "p9: protocol error: " + e.Msg }

// NewProtocolError builds a ProtocolError with a formatted message.
func NewProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// TruncatedError reports that a PDU ran out of bytes mid-decode.
type TruncatedError struct {
	Op string
}

func (e *TruncatedError) Error() string { return "p9: truncated PDU decoding " + e.Op }

// RerrorFault reports a legacy Rerror whose ename string is not in the
// canonical dictionary. This maps to errno 0
// ("treated as success-with-warning") rather than failing the call
// outright — callers should still log it.
type RerrorFault struct {
	Ename string
}

func (e *RerrorFault) Error() string {
	return fmt.Sprintf("p9: unrecognized Rerror string %q", e.Ename)
}

// canonicalErrors maps the fixed set of 9P/Plan 9 error strings this
// client understands to POSIX errno values. Entries are the messages
// Linux's 9P client and this module's virtio-9p ancestor both treat as
// canonical; anything else falls through to RerrorFault/errno 0.
var canonicalErrors = map[string]Errno{
	"Operation not permitted":              unix.EPERM,
	"No such file or directory":            unix.ENOENT,
	"file not found":                       unix.ENOENT,
	"Interrupted system call":              unix.EINTR,
	"Input/output error":                   unix.EIO,
	"No such device or address":            unix.ENXIO,
	"Argument list too long":               unix.E2BIG,
	"Bad file descriptor":                  unix.EBADF,
	"Try again":                            unix.EAGAIN,
	"Resource temporarily unavailable":     unix.EAGAIN,
	"Out of memory":                        unix.ENOMEM,
	"Cannot allocate memory":               unix.ENOMEM,
	"Permission denied":                    unix.EACCES,
	"Bad address":                          unix.EFAULT,
	"Device or resource busy":              unix.EBUSY,
	"File exists":                          unix.EEXIST,
	"Invalid cross-device link":            unix.EXDEV,
	"No such device":                       unix.ENODEV,
	"Not a directory":                      unix.ENOTDIR,
	"Is a directory":                       unix.EISDIR,
	"Invalid argument":                     unix.EINVAL,
	"Bad character in file name":           unix.EINVAL,
	"File table overflow":                  unix.ENFILE,
	"Too many open files":                  unix.EMFILE,
	"File too large":                       unix.EFBIG,
	"No space left on device":              unix.ENOSPC,
	"Illegal seek":                         unix.ESPIPE,
	"Read-only file system":                unix.EROFS,
	"Too many links":                       unix.EMLINK,
	"Broken pipe":                          unix.EPIPE,
	"Filename too long":                    unix.ENAMETOOLONG,
	"Directory not empty":                  unix.ENOTEMPTY,
	"Too many levels of symbolic links":    unix.ELOOP,
	"Function not implemented":             unix.ENOSYS,
	"not supported":                        unix.ENOTSUP,
	"Operation not supported":              unix.ENOTSUP,
	"Connection reset by peer":             unix.ECONNRESET,
	"Software caused connection abort":     unix.ECONNABORTED,
	"Transport endpoint is not connected":  unix.ENOTCONN,
	"Numerical result out of range":        unix.ERANGE,
	"No data available":                    unix.ENODATA,
	"No such attribute":                    unix.ENODATA,
}

// FromRerror maps a legacy/9P2000.u Rerror string to an Errno. A
// string absent from the dictionary yields errno 0 and a non-nil
// RerrorFault the caller can log.
func FromRerror(ename string) (Errno, error) {
	if errno, ok := canonicalErrors[ename]; ok {
		return errno, nil
	}
	return 0, &RerrorFault{Ename: ename}
}

// FromRerrorU resolves a 9P2000.u Rerror: the server-supplied numeric
// errno takes precedence over the string when it is present and below
// 512.
func FromRerrorU(ename string, numeric uint32) Errno {
	if numeric != 0 && numeric < 512 {
		return Errno(numeric)
	}
	errno, _ := FromRerror(ename)
	return errno
}

// FromRlerror converts a 9P2000.L Rlerror numeric errno directly.
func FromRlerror(numeric uint32) Errno {
	return Errno(numeric)
}

// Extract maps a Go error onto the closest Errno, unwrapping os and
// standard-library error types the way the ancestor's ExtractErrno
// does; unmappable errors return EIO.
func Extract(err error) Errno {
	if err == nil {
		return 0
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		return unix.ENOENT
	case errors.Is(err, os.ErrExist):
		return unix.EEXIST
	case errors.Is(err, os.ErrPermission):
		return unix.EACCES
	case errors.Is(err, os.ErrInvalid):
		return unix.EINVAL
	case errors.Is(err, os.ErrClosed):
		return unix.EBADF
	}

	var errno Errno
	if errors.As(err, &errno) {
		return errno
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return Extract(perr.Err)
	}
	var serr *os.SyscallError
	if errors.As(err, &serr) {
		return Extract(serr.Err)
	}
	var lerr *os.LinkError
	if errors.As(err, &lerr) {
		return Extract(lerr.Err)
	}
	return unix.EIO
}
