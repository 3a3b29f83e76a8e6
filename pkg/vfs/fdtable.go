package vfs

import (
	"container/heap"
	"os"
	"sync"

	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
)

// Standard file descriptor constants. The engine never binds the stdio
// descriptors; they belong to the interception substrate.
const firstUserFD = 3

// FileHandle is one open-file instance: the object it refers to, a cursor,
// and the open flags. Descriptors created by dup/dup2 (and tables cloned on
// fork) share a single FileHandle, so the cursor is shared. Reopening the
// same path instead creates an independent cursor.
type FileHandle struct {
	mu sync.Mutex

	// mount the handle was opened through.
	mount *Mount

	// ino is the target inode for managed mounts.
	ino int64

	// hostFile carries the passthrough file for bind mounts.
	hostFile *os.File

	cursor int64
	flags  OpenFlags

	// refs counts fd bindings to this handle across all tables that share
	// it. The handle is released when it reaches zero.
	refs int
}

// isHost reports whether the handle passes through to the host OS.
func (h *FileHandle) isHost() bool { return h.hostFile != nil }

// minHeap is a min-heap of freed descriptor numbers, so allocation reuses
// the lowest available fd as POSIX requires.
type minHeap []int

func (m minHeap) Len() int           { return len(m) }
func (m minHeap) Less(i, j int) bool { return m[i] < m[j] }
func (m minHeap) Swap(i, j int)      { m[i], m[j] = m[j], m[i] }
func (m *minHeap) Push(x any)        { *m = append(*m, x.(int)) }
func (m *minHeap) Pop() any {
	old := *m
	n := len(old)
	x := old[n-1]
	*m = old[:n-1]
	return x
}

// FDTable is the per-process map from small integer descriptors to open
// file handles. It is in-memory and session-local: a crash loses fd
// bookkeeping but never the durable store, because mutations commit or roll
// back before any call returns.
type FDTable struct {
	mu      sync.Mutex
	entries map[int]*FileHandle
	nextFD  int
	free    minHeap
}

// NewFDTable creates an empty table. Descriptors 0-2 are reserved and never
// allocated.
func NewFDTable() *FDTable {
	return &FDTable{
		entries: make(map[int]*FileHandle),
		nextFD:  firstUserFD,
	}
}

// Allocate binds handle to the lowest available descriptor and returns it.
func (t *FDTable) Allocate(handle *FileHandle) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allocateLocked(handle)
}

func (t *FDTable) allocateLocked(handle *FileHandle) int {
	var fd int
	if t.free.Len() > 0 {
		fd = heap.Pop(&t.free).(int)
	} else {
		fd = t.nextFD
		t.nextFD++
	}

	handle.mu.Lock()
	handle.refs++
	handle.mu.Unlock()

	t.entries[fd] = handle
	return fd
}

// AllocateAt binds handle to a specific descriptor (dup2 semantics) and
// returns the handle previously bound there, if any. The caller is
// responsible for releasing the displaced handle.
func (t *FDTable) AllocateAt(fd int, handle *FileHandle) *FileHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, free := range t.free {
		if free == fd {
			heap.Remove(&t.free, i)
			break
		}
	}
	if fd >= t.nextFD {
		t.nextFD = fd + 1
	}

	handle.mu.Lock()
	handle.refs++
	handle.mu.Unlock()

	old := t.entries[fd]
	t.entries[fd] = handle
	return old
}

// Get returns the handle bound to fd.
func (t *FDTable) Get(fd int) (*FileHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	handle, ok := t.entries[fd]
	if !ok {
		return nil, vfserrors.NewInvalidHandleError(fd)
	}
	return handle, nil
}

// Remove unbinds fd and returns its handle with the binding's reference
// already dropped. The second result is true when that was the last
// binding and the handle must be released by the caller.
func (t *FDTable) Remove(fd int) (*FileHandle, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	handle, ok := t.entries[fd]
	if !ok {
		return nil, false, vfserrors.NewInvalidHandleError(fd)
	}
	delete(t.entries, fd)
	if fd >= firstUserFD {
		heap.Push(&t.free, fd)
	}

	handle.mu.Lock()
	handle.refs--
	last := handle.refs == 0
	handle.mu.Unlock()

	return handle, last, nil
}

// Dup binds a fresh descriptor to the same handle as fd, sharing its
// cursor and flags.
func (t *FDTable) Dup(fd int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	handle, ok := t.entries[fd]
	if !ok {
		return 0, vfserrors.NewInvalidHandleError(fd)
	}
	return t.allocateLocked(handle), nil
}

// Dup2 binds newFD to the same handle as oldFD, returning any displaced
// handle as Remove does.
func (t *FDTable) Dup2(oldFD, newFD int) (*FileHandle, bool, error) {
	t.mu.Lock()
	handle, ok := t.entries[oldFD]
	t.mu.Unlock()
	if !ok {
		return nil, false, vfserrors.NewInvalidHandleError(oldFD)
	}
	if oldFD == newFD {
		return nil, false, nil
	}

	old := t.AllocateAt(newFD, handle)
	if old == nil {
		return nil, false, nil
	}
	old.mu.Lock()
	old.refs--
	last := old.refs == 0
	old.mu.Unlock()
	return old, last, nil
}

// Clone duplicates the table for fork: the child's descriptors are bound
// to the same FileHandle instances as the parent's, so cursors stay
// shared, mirroring dup.
func (t *FDTable) Clone() *FDTable {
	t.mu.Lock()
	defer t.mu.Unlock()

	child := &FDTable{
		entries: make(map[int]*FileHandle, len(t.entries)),
		nextFD:  t.nextFD,
		free:    append(minHeap(nil), t.free...),
	}
	for fd, handle := range t.entries {
		handle.mu.Lock()
		handle.refs++
		handle.mu.Unlock()
		child.entries[fd] = handle
	}
	return child
}

// Len returns the number of bound descriptors.
func (t *FDTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Handles returns every distinct handle currently bound in the table,
// with the count of bindings each has here. Used when a process exits to
// release its descriptors.
func (t *FDTable) Handles() map[*FileHandle]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[*FileHandle]int)
	for _, handle := range t.entries {
		out[handle]++
	}
	return out
}
