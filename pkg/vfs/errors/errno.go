package errors

import (
	"golang.org/x/sys/unix"
)

// Errno maps an ErrorCode to the nearest POSIX errno equivalent.
//
// The syscall translator returns these to the interception substrate so
// unmodified programs see standard kernel error numbers.
func (e ErrorCode) Errno() unix.Errno {
	switch e {
	case ErrNotFound:
		return unix.ENOENT
	case ErrAlreadyExists:
		return unix.EEXIST
	case ErrNotDirectory:
		return unix.ENOTDIR
	case ErrIsDirectory:
		return unix.EISDIR
	case ErrTooManyLinks:
		return unix.ELOOP
	case ErrInvalidHandle:
		return unix.EBADF
	case ErrNotEmpty:
		return unix.ENOTEMPTY
	case ErrStorageBusy:
		return unix.EAGAIN
	case ErrCorruption:
		return unix.EIO
	case ErrInvalidArgument:
		return unix.EINVAL
	default:
		return unix.EIO
	}
}

// ErrnoOf returns the errno for err. Non-VFSError values (context
// cancellation, driver failures) map to EIO.
func ErrnoOf(err error) unix.Errno {
	if err == nil {
		return 0
	}
	if vfsErr, ok := err.(*VFSError); ok {
		return vfsErr.Code.Errno()
	}
	return unix.EIO
}
