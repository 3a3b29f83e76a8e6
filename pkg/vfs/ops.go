package vfs

import (
	"context"

	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
	"github.com/agentfs/agentfs/pkg/vfs/store"
)

// ============================================================================
// Path Operations
// ============================================================================

// Stat resolves sandboxPath, following a final symlink, and returns its
// metadata with the computed link count.
func (s *Session) Stat(ctx context.Context, sandboxPath string) (*Stat, error) {
	return s.statPath(ctx, sandboxPath, true)
}

// Lstat is Stat without following a final symlink.
func (s *Session) Lstat(ctx context.Context, sandboxPath string) (*Stat, error) {
	return s.statPath(ctx, sandboxPath, false)
}

func (s *Session) statPath(ctx context.Context, sandboxPath string, follow bool) (*Stat, error) {
	m, rel, err := s.mounts.Resolve(sandboxPath)
	if err != nil {
		return nil, err
	}
	if m.Kind == MountBind {
		return hostStat(m.hostPath(rel), follow)
	}

	var result *Stat
	err = m.Store.View(ctx, func(tx *store.Tx) error {
		ino, err := resolvePath(tx, rel, follow)
		if err != nil {
			return err
		}
		inode, err := tx.GetInode(ino)
		if err != nil {
			return err
		}
		nlink, err := tx.CountDentries(ino)
		if err != nil {
			return err
		}
		result = statFromInode(inode, nlink)
		return nil
	})
	return result, err
}

// Readdir returns the basenames inside the directory at sandboxPath,
// ordered lexicographically.
func (s *Session) Readdir(ctx context.Context, sandboxPath string) ([]string, error) {
	m, rel, err := s.mounts.Resolve(sandboxPath)
	if err != nil {
		return nil, err
	}
	if m.Kind == MountBind {
		return hostReaddir(m.hostPath(rel))
	}

	var names []string
	err = m.Store.View(ctx, func(tx *store.Tx) error {
		ino, err := resolvePath(tx, rel, true)
		if err != nil {
			return err
		}
		inode, err := tx.GetInode(ino)
		if err != nil {
			return err
		}
		if !inode.IsDir() {
			return vfserrors.NewNotDirectoryError(sandboxPath)
		}
		entries, err := tx.ListDentries(ino)
		if err != nil {
			return err
		}
		names = make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name)
		}
		return nil
	})
	return names, err
}

// Mkdir creates a directory at sandboxPath.
func (s *Session) Mkdir(ctx context.Context, sandboxPath string, mode uint32) error {
	m, rel, err := s.mounts.Resolve(sandboxPath)
	if err != nil {
		return err
	}
	if m.Kind == MountBind {
		return hostMkdir(m.hostPath(rel), mode)
	}

	return m.Store.WithTransaction(ctx, func(tx *store.Tx) error {
		parent, base, err := resolveParent(tx, rel, false)
		if err != nil {
			return err
		}
		dir, err := tx.CreateInode(store.ModeDir|(mode&0o7777), 0, 0)
		if err != nil {
			return err
		}
		if err := tx.InsertDentry(parent, base, dir.Ino); err != nil {
			return err
		}
		return tx.TouchMtime(parent)
	})
}

// Symlink creates a symbolic link at sandboxPath pointing to target.
// The target string is stored verbatim; it is interpreted at resolution
// time, relative to the mount root when absolute.
func (s *Session) Symlink(ctx context.Context, target, sandboxPath string) error {
	m, rel, err := s.mounts.Resolve(sandboxPath)
	if err != nil {
		return err
	}
	if m.Kind == MountBind {
		return hostSymlink(target, m.hostPath(rel))
	}

	return m.Store.WithTransaction(ctx, func(tx *store.Tx) error {
		parent, base, err := resolveParent(tx, rel, false)
		if err != nil {
			return err
		}
		link, err := tx.CreateInode(store.ModeSymlink|0o777, 0, 0)
		if err != nil {
			return err
		}
		if err := tx.SetSymlink(link.Ino, target); err != nil {
			return err
		}
		link.Size = int64(len(target))
		if err := tx.PutInode(link); err != nil {
			return err
		}
		if err := tx.InsertDentry(parent, base, link.Ino); err != nil {
			return err
		}
		return tx.TouchMtime(parent)
	})
}

// Readlink returns the target of the symlink at sandboxPath.
func (s *Session) Readlink(ctx context.Context, sandboxPath string) (string, error) {
	m, rel, err := s.mounts.Resolve(sandboxPath)
	if err != nil {
		return "", err
	}
	if m.Kind == MountBind {
		return hostReadlink(m.hostPath(rel))
	}

	var target string
	err = m.Store.View(ctx, func(tx *store.Tx) error {
		ino, err := resolvePath(tx, rel, false)
		if err != nil {
			return err
		}
		inode, err := tx.GetInode(ino)
		if err != nil {
			return err
		}
		if !inode.IsSymlink() {
			return vfserrors.NewInvalidArgumentError("not a symbolic link")
		}
		target, err = tx.GetSymlink(ino)
		return err
	})
	return target, err
}

// Link creates a hard link at newPath to the object at oldPath. Both paths
// must live on the same managed mount; directories cannot be hard linked.
func (s *Session) Link(ctx context.Context, oldPath, newPath string) error {
	oldMount, oldRel, err := s.mounts.Resolve(oldPath)
	if err != nil {
		return err
	}
	newMount, newRel, err := s.mounts.Resolve(newPath)
	if err != nil {
		return err
	}
	if oldMount != newMount {
		return vfserrors.NewInvalidArgumentError("hard link across mounts")
	}
	if oldMount.Kind == MountBind {
		return hostLink(oldMount.hostPath(oldRel), oldMount.hostPath(newRel))
	}

	return oldMount.Store.WithTransaction(ctx, func(tx *store.Tx) error {
		ino, err := resolvePath(tx, oldRel, false)
		if err != nil {
			return err
		}
		inode, err := tx.GetInode(ino)
		if err != nil {
			return err
		}
		if inode.IsDir() {
			return vfserrors.NewIsDirectoryError(oldPath)
		}
		parent, base, err := resolveParent(tx, newRel, false)
		if err != nil {
			return err
		}
		if err := tx.InsertDentry(parent, base, ino); err != nil {
			return err
		}
		if err := tx.TouchMtime(parent); err != nil {
			return err
		}
		return tx.TouchMtime(ino)
	})
}

// Unlink removes the directory entry at sandboxPath. If that was the last
// entry and no handle is open on the inode, the inode and its data ranges
// are deleted in the same transaction; with handles still open the inode
// becomes orphaned, reachable only through those handles, and is deleted
// by the last close.
func (s *Session) Unlink(ctx context.Context, sandboxPath string) error {
	m, rel, err := s.mounts.Resolve(sandboxPath)
	if err != nil {
		return err
	}
	if m.Kind == MountBind {
		return hostUnlink(m.hostPath(rel))
	}

	// The mount lock spans the transaction so the open-handle check in
	// maybeDeleteOrphan stays consistent with concurrent opens.
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Store.WithTransaction(ctx, func(tx *store.Tx) error {
		parent, base, err := resolveParent(tx, rel, false)
		if err != nil {
			return err
		}
		ino, err := tx.Lookup(parent, base)
		if err != nil {
			return err
		}
		inode, err := tx.GetInode(ino)
		if err != nil {
			return err
		}
		if inode.IsDir() {
			return vfserrors.NewIsDirectoryError(sandboxPath)
		}
		if err := tx.DeleteDentry(parent, base); err != nil {
			return err
		}
		if err := tx.TouchMtime(parent); err != nil {
			return err
		}
		return s.maybeDeleteOrphan(tx, m, ino)
	})
}

// Rmdir removes the empty directory at sandboxPath.
func (s *Session) Rmdir(ctx context.Context, sandboxPath string) error {
	m, rel, err := s.mounts.Resolve(sandboxPath)
	if err != nil {
		return err
	}
	if m.Kind == MountBind {
		return hostRmdir(m.hostPath(rel))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Store.WithTransaction(ctx, func(tx *store.Tx) error {
		parent, base, err := resolveParent(tx, rel, false)
		if err != nil {
			return err
		}
		ino, err := tx.Lookup(parent, base)
		if err != nil {
			return err
		}
		inode, err := tx.GetInode(ino)
		if err != nil {
			return err
		}
		if !inode.IsDir() {
			return vfserrors.NewNotDirectoryError(sandboxPath)
		}
		children, err := tx.CountChildren(ino)
		if err != nil {
			return err
		}
		if children > 0 {
			return vfserrors.NewNotEmptyError(sandboxPath)
		}
		if err := tx.DeleteDentry(parent, base); err != nil {
			return err
		}
		if err := tx.TouchMtime(parent); err != nil {
			return err
		}
		return s.maybeDeleteOrphan(tx, m, ino)
	})
}

// Rename atomically moves oldPath to newPath within one managed mount.
// An existing non-directory destination is unlinked inside the same
// transaction before the new entry is inserted, so no observer ever sees
// the destination resolve to neither the old nor the new target. An
// existing non-empty directory destination fails DirectoryNotEmpty.
func (s *Session) Rename(ctx context.Context, oldPath, newPath string) error {
	oldMount, oldRel, err := s.mounts.Resolve(oldPath)
	if err != nil {
		return err
	}
	newMount, newRel, err := s.mounts.Resolve(newPath)
	if err != nil {
		return err
	}
	if oldMount != newMount {
		return vfserrors.NewInvalidArgumentError("rename across mounts")
	}
	if oldMount.Kind == MountBind {
		return hostRename(oldMount.hostPath(oldRel), oldMount.hostPath(newRel))
	}

	oldMount.mu.Lock()
	defer oldMount.mu.Unlock()

	return oldMount.Store.WithTransaction(ctx, func(tx *store.Tx) error {
		oldParent, oldBase, err := resolveParent(tx, oldRel, false)
		if err != nil {
			return err
		}
		ino, err := tx.Lookup(oldParent, oldBase)
		if err != nil {
			return err
		}

		newParent, newBase, err := resolveParent(tx, newRel, false)
		if err != nil {
			return err
		}

		movedInode, err := tx.GetInode(ino)
		if err != nil {
			return err
		}
		if movedInode.IsDir() {
			// Walk the destination's ancestry. Moving a directory below
			// itself would detach its whole subtree into an unreachable
			// cycle, so rename(2) rejects it with EINVAL.
			for cur := newParent; ; {
				if cur == ino {
					return vfserrors.NewInvalidArgumentError("cannot move a directory into its own subtree")
				}
				if cur == store.RootIno {
					break
				}
				next, perr := tx.ParentOf(cur)
				if perr != nil {
					return perr
				}
				cur = next
			}
		}

		// Replace an existing destination inside the same transaction.
		destIno, err := tx.Lookup(newParent, newBase)
		switch {
		case err == nil && destIno != ino:
			destInode, gerr := tx.GetInode(destIno)
			if gerr != nil {
				return gerr
			}
			if destInode.IsDir() {
				children, cerr := tx.CountChildren(destIno)
				if cerr != nil {
					return cerr
				}
				if children > 0 {
					return vfserrors.NewNotEmptyError(newPath)
				}
			}
			if derr := tx.DeleteDentry(newParent, newBase); derr != nil {
				return derr
			}
			if derr := s.maybeDeleteOrphan(tx, oldMount, destIno); derr != nil {
				return derr
			}
		case err == nil && destIno == ino:
			// Renaming a hard link onto itself leaves both entries alone.
			return nil
		case !vfserrors.IsNotFoundError(err):
			return err
		}

		if err := tx.DeleteDentry(oldParent, oldBase); err != nil {
			return err
		}
		if err := tx.InsertDentry(newParent, newBase, ino); err != nil {
			return err
		}
		if err := tx.TouchMtime(oldParent); err != nil {
			return err
		}
		if newParent != oldParent {
			if err := tx.TouchMtime(newParent); err != nil {
				return err
			}
		}
		return nil
	})
}

// Truncate sets the size of the file at sandboxPath.
func (s *Session) Truncate(ctx context.Context, sandboxPath string, size int64) error {
	m, rel, err := s.mounts.Resolve(sandboxPath)
	if err != nil {
		return err
	}
	if m.Kind == MountBind {
		return hostTruncate(m.hostPath(rel), size)
	}

	return m.Store.WithTransaction(ctx, func(tx *store.Tx) error {
		ino, err := resolvePath(tx, rel, true)
		if err != nil {
			return err
		}
		inode, err := tx.GetInode(ino)
		if err != nil {
			return err
		}
		if inode.IsDir() {
			return vfserrors.NewIsDirectoryError(sandboxPath)
		}
		return tx.Truncate(ino, size)
	})
}

// WriteFile writes data as the complete content of sandboxPath, creating
// the file and any missing parent directories in one transaction. This is
// the bulk "write this path" operation; unlike open without create, it
// opts into materializing intermediate directories.
func (s *Session) WriteFile(ctx context.Context, sandboxPath string, data []byte, mode uint32) error {
	m, rel, err := s.mounts.Resolve(sandboxPath)
	if err != nil {
		return err
	}
	if m.Kind == MountBind {
		return hostWriteFile(m.hostPath(rel), data, mode)
	}

	return m.Store.WithTransaction(ctx, func(tx *store.Tx) error {
		parent, base, err := resolveParent(tx, rel, true)
		if err != nil {
			return err
		}
		ino, err := tx.Lookup(parent, base)
		if vfserrors.IsNotFoundError(err) {
			inode, cerr := tx.CreateInode(store.ModeRegular|(mode&0o7777), 0, 0)
			if cerr != nil {
				return cerr
			}
			if cerr := tx.InsertDentry(parent, base, inode.Ino); cerr != nil {
				return cerr
			}
			if cerr := tx.TouchMtime(parent); cerr != nil {
				return cerr
			}
			ino = inode.Ino
		} else if err != nil {
			return err
		} else {
			inode, gerr := tx.GetInode(ino)
			if gerr != nil {
				return gerr
			}
			if inode.IsDir() {
				return vfserrors.NewIsDirectoryError(sandboxPath)
			}
			if terr := tx.Truncate(ino, 0); terr != nil {
				return terr
			}
		}
		return tx.WriteRange(ino, 0, data)
	})
}

// ReadFile returns the complete content of the file at sandboxPath.
func (s *Session) ReadFile(ctx context.Context, sandboxPath string) ([]byte, error) {
	m, rel, err := s.mounts.Resolve(sandboxPath)
	if err != nil {
		return nil, err
	}
	if m.Kind == MountBind {
		return hostReadFile(m.hostPath(rel))
	}

	var data []byte
	err = m.Store.View(ctx, func(tx *store.Tx) error {
		ino, err := resolvePath(tx, rel, true)
		if err != nil {
			return err
		}
		inode, err := tx.GetInode(ino)
		if err != nil {
			return err
		}
		if inode.IsDir() {
			return vfserrors.NewIsDirectoryError(sandboxPath)
		}
		data, err = tx.ReadRange(ino, 0, inode.Size)
		return err
	})
	return data, err
}

// maybeDeleteOrphan deletes ino when its entry count and open-handle count
// have both reached zero. Called after an entry removal, inside the same
// transaction, so an observer never sees a half-removed file. The caller
// holds m.mu, which keeps the open-handle check stable until the
// transaction commits.
func (s *Session) maybeDeleteOrphan(tx *store.Tx, m *Mount, ino int64) error {
	links, err := tx.CountDentries(ino)
	if err != nil {
		return err
	}
	if links > 0 || m.openCountLocked(ino) > 0 || ino == store.RootIno {
		return nil
	}
	return tx.DeleteInode(ino)
}
