package vfs

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentfs/agentfs/internal/logger"
	"github.com/agentfs/agentfs/pkg/metrics"
	"github.com/agentfs/agentfs/pkg/vfs/store"
)

// SessionConfig configures one filesystem session.
type SessionConfig struct {
	// Mounts are the parsed mount specifications, consumed once at session
	// start to populate the mount table.
	Mounts []*MountSpec

	// Store overrides the store configuration applied to every managed
	// mount (busy timeout, retries). The Path field is taken from each
	// mount's src.
	Store store.Config

	// Trace enables logging of every dispatched operation with its
	// arguments, resolved mount, and outcome. Observability only; it has
	// no effect on semantics or ordering.
	Trace bool

	// Metrics receives per-operation observations from Dispatch. Nil
	// disables collection.
	Metrics metrics.VFSMetrics

	// StoreMetrics receives transaction observations from every managed
	// store this session opens. Nil disables collection.
	StoreMetrics metrics.StoreMetrics
}

// Session is one filesystem instance: it owns the mount table and the
// file-descriptor table and is passed to every operation. There is no
// module-level singleton, so multiple isolated sessions can coexist in one
// process and tests stay deterministic.
type Session struct {
	id     string
	mounts *MountTable
	fds    *FDTable
	trace  bool

	// ownedStores are stores this session opened and must close. Forked
	// sessions share their parent's stores and own none.
	ownedStores []*store.Store

	metrics metrics.VFSMetrics
}

// NewSession opens the managed stores named by the mount specs and builds
// the session. The mount table is immutable afterwards.
func NewSession(cfg SessionConfig) (*Session, error) {
	if len(cfg.Mounts) == 0 {
		return nil, fmt.Errorf("at least one mount is required")
	}

	s := &Session{
		id:      uuid.New().String(),
		fds:     NewFDTable(),
		trace:   cfg.Trace,
		metrics: cfg.Metrics,
	}

	mounts := make([]*Mount, 0, len(cfg.Mounts))
	for _, spec := range cfg.Mounts {
		switch spec.Kind {
		case MountBind:
			mounts = append(mounts, &Mount{
				Prefix:   spec.Dst,
				Kind:     MountBind,
				HostRoot: spec.Src,
			})
		case MountManaged:
			storeCfg := cfg.Store
			storeCfg.Path = spec.Src
			st, err := store.Open(&storeCfg)
			if err != nil {
				s.closeOwned()
				return nil, fmt.Errorf("failed to open managed store for %s: %w", spec.Dst, err)
			}
			st.SetMetrics(cfg.StoreMetrics)
			s.ownedStores = append(s.ownedStores, st)
			mounts = append(mounts, &Mount{
				Prefix:   spec.Dst,
				Kind:     MountManaged,
				Store:    st,
				openRefs: make(map[int64]int),
			})
		default:
			s.closeOwned()
			return nil, fmt.Errorf("unsupported mount kind %q", spec.Kind)
		}
	}
	s.mounts = NewMountTable(mounts)

	logger.Info("session started",
		logger.SessionID(s.id),
		"mounts", len(mounts),
		"trace", cfg.Trace,
	)
	return s, nil
}

// ID returns the session identifier used in logs and the audit trail.
func (s *Session) ID() string { return s.id }

// Mounts returns the session's mount table.
func (s *Session) Mounts() *MountTable { return s.mounts }

// Fork returns a child session for a forked process. The child shares the
// mount table, stores, and open-handle accounting with the parent; its fd
// table entries are duplicated by reference, so descriptors in parent and
// child share FileHandle instances (and therefore cursors), mirroring dup.
func (s *Session) Fork() *Session {
	return &Session{
		id:      uuid.New().String(),
		mounts:  s.mounts,
		fds:     s.fds.Clone(),
		trace:   s.trace,
		metrics: s.metrics,
	}
}

// Exit releases every descriptor still open in this session's fd table,
// firing deferred deletion for inodes whose last handle this was. Called
// when the owning process terminates.
func (s *Session) Exit(ctx context.Context) error {
	var firstErr error
	for handle, bindings := range s.fds.Handles() {
		handle.mu.Lock()
		handle.refs -= bindings
		last := handle.refs == 0
		handle.mu.Unlock()
		if !last {
			continue
		}
		if err := s.releaseHandle(ctx, handle); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.fds = NewFDTable()
	return firstErr
}

// Close tears down the session and closes the stores it owns. Forked
// children must be closed before their parent.
func (s *Session) Close(ctx context.Context) error {
	err := s.Exit(ctx)
	s.closeOwned()
	return err
}

func (s *Session) closeOwned() {
	for _, st := range s.ownedStores {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("failed to close managed store", logger.Err(cerr))
		}
	}
	s.ownedStores = nil
}

// releaseHandle finishes an open-file instance whose last binding was
// removed: host files are closed, managed inodes get their open-handle
// count dropped (running deferred deletion when orphaned).
func (s *Session) releaseHandle(ctx context.Context, handle *FileHandle) error {
	if handle.isHost() {
		return handle.hostFile.Close()
	}
	return handle.mount.releaseInode(ctx, handle.ino)
}
