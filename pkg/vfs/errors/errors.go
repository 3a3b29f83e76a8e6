// Package errors provides error types and error codes for the virtual
// filesystem engine. This is a leaf package with no internal dependencies,
// designed to be imported by the store, the resolver, and the syscall
// translator without causing circular imports.
//
// Import graph: errors <- store <- vfs <- cmd
package errors

import (
	"fmt"
)

// ErrorCode represents the type of error that occurred.
type ErrorCode int

const (
	// ErrNotFound indicates the requested object does not exist (POSIX ENOENT).
	ErrNotFound ErrorCode = iota + 1

	// ErrAlreadyExists indicates the name is already bound in its parent (POSIX EEXIST).
	ErrAlreadyExists

	// ErrNotDirectory indicates the operation requires a directory (POSIX ENOTDIR).
	ErrNotDirectory

	// ErrIsDirectory indicates the operation is not valid on a directory (POSIX EISDIR).
	ErrIsDirectory

	// ErrTooManyLinks indicates symlink indirection exceeded the resolution
	// bound, almost always a symlink cycle (POSIX ELOOP).
	ErrTooManyLinks

	// ErrInvalidHandle indicates an unknown or stale file descriptor (POSIX EBADF).
	ErrInvalidHandle

	// ErrNotEmpty indicates a directory still has entries (POSIX ENOTEMPTY).
	ErrNotEmpty

	// ErrStorageBusy indicates the backing store's write lock could not be
	// acquired within the bounded wait. Retryable by the caller (POSIX EAGAIN).
	ErrStorageBusy

	// ErrCorruption indicates a persisted invariant was violated: overlapping
	// or gapped data ranges, a duplicate entry name, or a missing root inode.
	// Fatal for the operation that detects it; never repaired here (POSIX EIO).
	ErrCorruption

	// ErrInvalidArgument indicates a malformed request (POSIX EINVAL).
	ErrInvalidArgument
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrNotDirectory:
		return "NotADirectory"
	case ErrIsDirectory:
		return "IsADirectory"
	case ErrTooManyLinks:
		return "TooManyIndirections"
	case ErrInvalidHandle:
		return "InvalidHandle"
	case ErrNotEmpty:
		return "DirectoryNotEmpty"
	case ErrStorageBusy:
		return "StorageBusy"
	case ErrCorruption:
		return "Corruption"
	case ErrInvalidArgument:
		return "InvalidArgument"
	default:
		return fmt.Sprintf("Unknown(%d)", e)
	}
}

// VFSError represents a filesystem engine error with an error code.
type VFSError struct {
	Code    ErrorCode
	Message string
	Path    string
}

// Error implements the error interface.
func (e *VFSError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path: %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ============================================================================
// Factory Functions
// ============================================================================

// NewNotFoundError creates a NotFound error.
func NewNotFoundError(path string) *VFSError {
	return &VFSError{
		Code:    ErrNotFound,
		Message: "no such file or directory",
		Path:    path,
	}
}

// NewAlreadyExistsError creates an AlreadyExists error.
func NewAlreadyExistsError(path string) *VFSError {
	return &VFSError{
		Code:    ErrAlreadyExists,
		Message: "file exists",
		Path:    path,
	}
}

// NewNotDirectoryError creates a NotADirectory error.
func NewNotDirectoryError(path string) *VFSError {
	return &VFSError{
		Code:    ErrNotDirectory,
		Message: "not a directory",
		Path:    path,
	}
}

// NewIsDirectoryError creates an IsADirectory error.
func NewIsDirectoryError(path string) *VFSError {
	return &VFSError{
		Code:    ErrIsDirectory,
		Message: "is a directory",
		Path:    path,
	}
}

// NewTooManyLinksError creates a TooManyIndirections error.
func NewTooManyLinksError(path string) *VFSError {
	return &VFSError{
		Code:    ErrTooManyLinks,
		Message: "too many levels of symbolic links",
		Path:    path,
	}
}

// NewInvalidHandleError creates an InvalidHandle error.
func NewInvalidHandleError(fd int) *VFSError {
	return &VFSError{
		Code:    ErrInvalidHandle,
		Message: fmt.Sprintf("bad file descriptor %d", fd),
	}
}

// NewNotEmptyError creates a DirectoryNotEmpty error.
func NewNotEmptyError(path string) *VFSError {
	return &VFSError{
		Code:    ErrNotEmpty,
		Message: "directory not empty",
		Path:    path,
	}
}

// NewStorageBusyError creates a StorageBusy error.
func NewStorageBusyError(message string) *VFSError {
	return &VFSError{
		Code:    ErrStorageBusy,
		Message: message,
	}
}

// NewCorruptionError creates a Corruption error.
func NewCorruptionError(message string) *VFSError {
	return &VFSError{
		Code:    ErrCorruption,
		Message: message,
	}
}

// NewInvalidArgumentError creates an InvalidArgument error.
func NewInvalidArgumentError(message string) *VFSError {
	return &VFSError{
		Code:    ErrInvalidArgument,
		Message: message,
	}
}

// ============================================================================
// Error Type Checking Helpers
// ============================================================================

// IsNotFoundError returns true if the error is a NotFound error.
func IsNotFoundError(err error) bool {
	if vfsErr, ok := err.(*VFSError); ok {
		return vfsErr.Code == ErrNotFound
	}
	return false
}

// IsAlreadyExistsError returns true if the error is an AlreadyExists error.
func IsAlreadyExistsError(err error) bool {
	if vfsErr, ok := err.(*VFSError); ok {
		return vfsErr.Code == ErrAlreadyExists
	}
	return false
}

// IsStorageBusyError returns true if the error is a StorageBusy error.
// StorageBusy is the only retryable code in the taxonomy.
func IsStorageBusyError(err error) bool {
	if vfsErr, ok := err.(*VFSError); ok {
		return vfsErr.Code == ErrStorageBusy
	}
	return false
}

// IsCorruptionError returns true if the error is a Corruption error.
func IsCorruptionError(err error) bool {
	if vfsErr, ok := err.(*VFSError); ok {
		return vfsErr.Code == ErrCorruption
	}
	return false
}

// CodeOf returns the ErrorCode carried by err, or zero if err is not a
// VFSError.
func CodeOf(err error) ErrorCode {
	if vfsErr, ok := err.(*VFSError); ok {
		return vfsErr.Code
	}
	return 0
}
