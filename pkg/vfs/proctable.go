package vfs

import (
	"context"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/agentfs/agentfs/internal/logger"
	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
)

// ProcessTable tracks the session owned by each sandboxed process, so the
// substrate can route a dispatched operation by pid and propagate descriptor
// tables across fork, exec, and exit.
//
// Thread safety: safe for concurrent use.
type ProcessTable struct {
	mu       sync.RWMutex
	sessions map[int]*Session
}

// NewProcessTable creates a process table with the given root process bound
// to the initial session.
func NewProcessTable(rootPID int, root *Session) *ProcessTable {
	return &ProcessTable{
		sessions: map[int]*Session{rootPID: root},
	}
}

// Get returns the session for pid.
func (p *ProcessTable) Get(pid int) (*Session, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	session, ok := p.sessions[pid]
	if !ok {
		return nil, vfserrors.NewInvalidArgumentError("unknown process")
	}
	return session, nil
}

// Fork registers childPID with a copy of the parent's session. Descriptors
// are duplicated by reference: parent and child share open-file instances,
// so a read in one advances the cursor seen by the other, exactly as after
// fork(2).
func (p *ProcessTable) Fork(parentPID, childPID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	parent, ok := p.sessions[parentPID]
	if !ok {
		return vfserrors.NewInvalidArgumentError("unknown parent process")
	}
	if _, exists := p.sessions[childPID]; exists {
		return vfserrors.NewInvalidArgumentError("child pid already registered")
	}

	p.sessions[childPID] = parent.Fork()
	logger.Debug("process forked",
		logger.SessionID(parent.id),
		logger.PID(childPID),
	)
	return nil
}

// Exec is a no-op on the descriptor table: descriptors survive exec. It
// exists so the substrate has one call site per lifecycle event.
func (p *ProcessTable) Exec(pid int) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, ok := p.sessions[pid]; !ok {
		return vfserrors.NewInvalidArgumentError("unknown process")
	}
	return nil
}

// Exit releases every descriptor the process still holds and removes it
// from the table. Inodes orphaned by the release are deleted.
func (p *ProcessTable) Exit(ctx context.Context, pid int) error {
	p.mu.Lock()
	session, ok := p.sessions[pid]
	delete(p.sessions, pid)
	p.mu.Unlock()

	if !ok {
		return vfserrors.NewInvalidArgumentError("unknown process")
	}
	logger.Debug("process exited",
		logger.SessionID(session.id),
		logger.PID(pid),
	)
	return session.Exit(ctx)
}

// Dispatch routes one operation to the session owned by pid. An unknown
// pid surfaces as EINVAL, matching the rest of the translator boundary.
func (p *ProcessTable) Dispatch(ctx context.Context, pid int, op Op) (*Result, unix.Errno) {
	session, err := p.Get(pid)
	if err != nil {
		return nil, vfserrors.ErrnoOf(err)
	}
	ctx = logger.WithContext(ctx, &logger.LogContext{
		SessionID: session.id,
		PID:       pid,
	})
	return session.Dispatch(ctx, op)
}

// Len returns the number of live processes.
func (p *ProcessTable) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}
