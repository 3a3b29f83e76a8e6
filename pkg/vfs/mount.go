package vfs

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
	"github.com/agentfs/agentfs/pkg/vfs/store"
)

// MountKind identifies the backing of a mount.
type MountKind string

const (
	// MountBind passes operations through to a host directory.
	MountBind MountKind = "bind"

	// MountManaged routes operations into the record-store engine.
	MountManaged MountKind = "managed"
)

// Mount binds a sandbox path prefix to a backing store. Mounts are
// immutable for the session lifetime.
type Mount struct {
	// Prefix is the absolute sandbox path this mount covers.
	Prefix string

	// Kind selects the backing.
	Kind MountKind

	// HostRoot is the canonicalized host directory for bind mounts.
	HostRoot string

	// Store is the record store for managed mounts.
	Store *store.Store

	// openRefs tracks the open-handle count per inode, in session memory,
	// independent of the persisted entry count. Deferred deletion fires
	// only when both reach zero.
	mu       sync.Mutex
	openRefs map[int64]int
}

// retainInode increments the open-handle count for ino after verifying the
// inode still exists. The existence check and the increment run under mu,
// the same lock the unlink path holds across its deletion decision, so an
// open can never hand out a descriptor for an inode a concurrent unlink
// already deleted: either the unlink commits first and the retain fails
// NotFound, or the retain lands first and the unlink defers the deletion.
func (m *Mount) retainInode(ctx context.Context, ino int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.Store.View(ctx, func(tx *store.Tx) error {
		_, gerr := tx.GetInode(ino)
		return gerr
	})
	if err != nil {
		return err
	}

	if m.openRefs == nil {
		m.openRefs = make(map[int64]int)
	}
	m.openRefs[ino]++
	return nil
}

// openCountLocked returns the open-handle count for ino. Caller holds mu.
func (m *Mount) openCountLocked(ino int64) int {
	return m.openRefs[ino]
}

// releaseInode decrements the open-handle count for ino and performs the
// deferred deletion of an orphaned inode: when the count reaches zero and
// no directory entry points at the inode anymore, the inode and its data
// ranges are deleted in one transaction. mu is held across the whole
// transaction so the count check and the delete cannot interleave with a
// concurrent retain.
func (m *Mount) releaseInode(ctx context.Context, ino int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.openRefs[ino]--
	if m.openRefs[ino] > 0 {
		return nil
	}
	delete(m.openRefs, ino)

	return m.Store.WithTransaction(ctx, func(tx *store.Tx) error {
		links, err := tx.CountDentries(ino)
		if err != nil {
			return err
		}
		if links > 0 || ino == store.RootIno {
			return nil
		}
		return tx.DeleteInode(ino)
	})
}

// hostPath rewrites a mount-relative sandbox path to the backing host path.
func (m *Mount) hostPath(rel string) string {
	return filepath.Join(m.HostRoot, filepath.FromSlash(rel))
}

// MountTable resolves sandbox paths to mounts by longest matching prefix.
// It is populated once at session start and never mutated afterwards.
type MountTable struct {
	mounts []*Mount
}

// NewMountTable builds a table from mounts, ordered deepest prefix first so
// the longest matching prefix wins.
func NewMountTable(mounts []*Mount) *MountTable {
	sorted := append([]*Mount(nil), mounts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return pathDepth(sorted[i].Prefix) > pathDepth(sorted[j].Prefix)
	})
	return &MountTable{mounts: sorted}
}

func pathDepth(p string) int {
	if p == "/" {
		return 0
	}
	return strings.Count(p, "/")
}

// Resolve returns the mount covering sandboxPath and the path relative to
// the mount prefix. A path outside every declared prefix is rejected; there
// is no implicit host fallback.
func (t *MountTable) Resolve(sandboxPath string) (*Mount, string, error) {
	cleaned := path.Clean(sandboxPath)
	if !path.IsAbs(cleaned) {
		return nil, "", vfserrors.NewInvalidArgumentError("sandbox path must be absolute")
	}

	for _, m := range t.mounts {
		if cleaned == m.Prefix {
			return m, "", nil
		}
		prefix := m.Prefix
		if prefix != "/" {
			prefix += "/"
		}
		if strings.HasPrefix(cleaned, prefix) {
			return m, cleaned[len(prefix):], nil
		}
	}
	return nil, "", vfserrors.NewNotFoundError(sandboxPath)
}

// Mounts returns the table's mounts in match order.
func (t *MountTable) Mounts() []*Mount {
	return t.mounts
}

// MountSpec is the parsed form of one structured mount string consumed at
// session start: type=<bind|managed>,src=<source>,dst=<sandbox-path>.
type MountSpec struct {
	Kind MountKind
	Src  string
	Dst  string
}

// ParseMountSpec parses a Docker-style mount specification.
// Aliases are supported: "source" for "src", "target" for "dst".
func ParseMountSpec(s string) (*MountSpec, error) {
	options := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid mount option %q: expected key=value", part)
		}
		if _, dup := options[kv[0]]; dup {
			return nil, fmt.Errorf("duplicate key %q in mount specification", kv[0])
		}
		options[kv[0]] = kv[1]
	}

	kind, ok := options["type"]
	if !ok {
		return nil, fmt.Errorf("missing required field 'type' (example: type=bind,src=/host/path,dst=/sandbox/path)")
	}

	src := options["src"]
	if src == "" {
		src = options["source"]
	}
	dst := options["dst"]
	if dst == "" {
		dst = options["target"]
	}
	if src == "" {
		return nil, fmt.Errorf("%s mount requires 'src' field", kind)
	}
	if dst == "" {
		return nil, fmt.Errorf("%s mount requires 'dst' field", kind)
	}
	if !path.IsAbs(dst) {
		return nil, fmt.Errorf("destination path %q must be absolute", dst)
	}

	switch MountKind(kind) {
	case MountBind:
		// Canonicalize so later prefix rewrites cannot escape via symlinks.
		canonical, err := filepath.EvalSymlinks(src)
		if err != nil {
			return nil, fmt.Errorf("failed to canonicalize source path %q: %w", src, err)
		}
		return &MountSpec{Kind: MountBind, Src: canonical, Dst: path.Clean(dst)}, nil
	case MountManaged:
		return &MountSpec{Kind: MountManaged, Src: src, Dst: path.Clean(dst)}, nil
	default:
		return nil, fmt.Errorf("unsupported mount type %q: supported types are bind, managed", kind)
	}
}
