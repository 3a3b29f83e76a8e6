package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestErrorCodeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrNotFound, "NotFound"},
		{ErrAlreadyExists, "AlreadyExists"},
		{ErrNotDirectory, "NotADirectory"},
		{ErrIsDirectory, "IsADirectory"},
		{ErrTooManyLinks, "TooManyIndirections"},
		{ErrInvalidHandle, "InvalidHandle"},
		{ErrNotEmpty, "DirectoryNotEmpty"},
		{ErrStorageBusy, "StorageBusy"},
		{ErrCorruption, "Corruption"},
		{ErrInvalidArgument, "InvalidArgument"},
		{ErrorCode(999), "Unknown(999)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.String())
	}
}

func TestErrorMessageIncludesPath(t *testing.T) {
	t.Parallel()

	err := NewNotFoundError("/workspace/missing")
	assert.Contains(t, err.Error(), "NotFound")
	assert.Contains(t, err.Error(), "/workspace/missing")

	noPath := NewInvalidArgumentError("bad whence")
	assert.Contains(t, noPath.Error(), "bad whence")
	assert.NotContains(t, noPath.Error(), "path:")
}

func TestPredicates(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFoundError(NewNotFoundError("/x")))
	assert.False(t, IsNotFoundError(NewAlreadyExistsError("/x")))
	assert.False(t, IsNotFoundError(nil))
	assert.False(t, IsNotFoundError(errors.New("plain")))

	assert.True(t, IsAlreadyExistsError(NewAlreadyExistsError("/x")))
	assert.True(t, IsStorageBusyError(NewStorageBusyError("busy")))
	assert.True(t, IsCorruptionError(NewCorruptionError("bad ranges")))
}

func TestErrnoMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code ErrorCode
		want unix.Errno
	}{
		{ErrNotFound, unix.ENOENT},
		{ErrAlreadyExists, unix.EEXIST},
		{ErrNotDirectory, unix.ENOTDIR},
		{ErrIsDirectory, unix.EISDIR},
		{ErrTooManyLinks, unix.ELOOP},
		{ErrInvalidHandle, unix.EBADF},
		{ErrNotEmpty, unix.ENOTEMPTY},
		{ErrStorageBusy, unix.EAGAIN},
		{ErrCorruption, unix.EIO},
		{ErrInvalidArgument, unix.EINVAL},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.Errno(), tt.code.String())
	}
}

func TestErrnoOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, unix.Errno(0), ErrnoOf(nil))
	assert.Equal(t, unix.ENOENT, ErrnoOf(NewNotFoundError("/x")))

	// Anything outside the domain taxonomy flattens to EIO.
	assert.Equal(t, unix.EIO, ErrnoOf(fmt.Errorf("driver exploded")))

	var err error = NewInvalidHandleError(42)
	require.Error(t, err)
	assert.Equal(t, unix.EBADF, ErrnoOf(err))
}
