package vfs

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
	"github.com/agentfs/agentfs/pkg/vfs/store"
)

// ============================================================================
// Descriptor Operations
// ============================================================================

// Open resolves or creates the object at sandboxPath per flags and binds a
// fresh descriptor to a new FileHandle. The cursor starts at 0, or at the
// current size when opened for append.
func (s *Session) Open(ctx context.Context, sandboxPath string, flags OpenFlags, mode uint32) (int, error) {
	m, rel, err := s.mounts.Resolve(sandboxPath)
	if err != nil {
		return -1, err
	}
	if m.Kind == MountBind {
		hostFile, err := hostOpen(m.hostPath(rel), flags, mode)
		if err != nil {
			return -1, err
		}
		handle := &FileHandle{mount: m, hostFile: hostFile, flags: flags}
		if flags.Has(OpenAppend) {
			if info, serr := hostFile.Stat(); serr == nil {
				handle.cursor = info.Size()
			}
		}
		return s.fds.Allocate(handle), nil
	}

	var (
		ino    int64
		cursor int64
	)
	err = m.Store.WithTransaction(ctx, func(tx *store.Tx) error {
		resolved, rerr := resolvePath(tx, rel, true)
		switch {
		case rerr == nil:
			if flags.Has(OpenCreate | OpenExclusive) {
				return vfserrors.NewAlreadyExistsError(sandboxPath)
			}
			inode, gerr := tx.GetInode(resolved)
			if gerr != nil {
				return gerr
			}
			if inode.IsDir() && flags.Has(OpenWrite) {
				return vfserrors.NewIsDirectoryError(sandboxPath)
			}
			if flags.Has(OpenTruncate) && inode.IsRegular() {
				if terr := tx.Truncate(resolved, 0); terr != nil {
					return terr
				}
				inode.Size = 0
			}
			if flags.Has(OpenAppend) {
				cursor = inode.Size
			}
			ino = resolved
			return nil

		case vfserrors.IsNotFoundError(rerr) && flags.Has(OpenCreate):
			// Raw open with create still resolves the parent strictly:
			// a missing intermediate directory fails NotFound.
			cur := rel
			var (
				parent int64
				base   string
			)
			for depth := 0; ; depth++ {
				if depth > MaxSymlinkDepth {
					return vfserrors.NewTooManyLinksError(sandboxPath)
				}
				var perr error
				parent, base, perr = resolveParent(tx, cur, false)
				if perr != nil {
					return perr
				}
				existing, lerr := tx.Lookup(parent, base)
				if vfserrors.IsNotFoundError(lerr) {
					break
				}
				if lerr != nil {
					return lerr
				}
				// Path resolution above failed NotFound, so an entry at
				// the basename can only be a symlink whose chain dangles.
				// open(2) with O_EXCL refuses it; otherwise the create
				// lands on the chain's final target.
				if flags.Has(OpenExclusive) {
					return vfserrors.NewAlreadyExistsError(sandboxPath)
				}
				target, serr := tx.GetSymlink(existing)
				if serr != nil {
					return serr
				}
				if path.IsAbs(target) {
					cur = strings.TrimPrefix(path.Clean(target), "/")
				} else {
					cur = path.Join(path.Dir(cur), target)
				}
			}
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
			return nil

		default:
			return rerr
		}
	})
	if err != nil {
		return -1, err
	}

	if err := m.retainInode(ctx, ino); err != nil {
		return -1, err
	}
	handle := &FileHandle{mount: m, ino: ino, cursor: cursor, flags: flags}
	return s.fds.Allocate(handle), nil
}

// Read reads up to length bytes from the handle's cursor, advancing the
// cursor by the bytes actually returned. A short read means end-of-file.
func (s *Session) Read(ctx context.Context, fd int, length int64) ([]byte, error) {
	handle, err := s.fds.Get(fd)
	if err != nil {
		return nil, err
	}

	handle.mu.Lock()
	defer handle.mu.Unlock()

	if handle.isHost() {
		buf := make([]byte, length)
		n, rerr := handle.hostFile.ReadAt(buf, handle.cursor)
		handle.cursor += int64(n)
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return nil, hostErr(rerr)
		}
		return buf[:n], nil
	}

	var data []byte
	err = handle.mount.Store.View(ctx, func(tx *store.Tx) error {
		inode, err := tx.GetInode(handle.ino)
		if err != nil {
			return err
		}
		if inode.IsDir() {
			return vfserrors.NewIsDirectoryError("")
		}
		data, err = tx.ReadRange(handle.ino, handle.cursor, length)
		return err
	})
	if err != nil {
		return nil, err
	}
	handle.cursor += int64(len(data))
	return data, nil
}

// Write writes data at the handle's cursor, or at the current end of file
// for append handles, advancing the cursor past the written bytes.
func (s *Session) Write(ctx context.Context, fd int, data []byte) (int, error) {
	handle, err := s.fds.Get(fd)
	if err != nil {
		return 0, err
	}

	handle.mu.Lock()
	defer handle.mu.Unlock()

	if handle.isHost() {
		if handle.flags.Has(OpenAppend) {
			if info, serr := handle.hostFile.Stat(); serr == nil {
				handle.cursor = info.Size()
			}
		}
		n, err := handle.hostFile.WriteAt(data, handle.cursor)
		handle.cursor += int64(n)
		if err != nil {
			return n, hostErr(err)
		}
		return n, nil
	}

	err = handle.mount.Store.WithTransaction(ctx, func(tx *store.Tx) error {
		inode, err := tx.GetInode(handle.ino)
		if err != nil {
			return err
		}
		if inode.IsDir() {
			return vfserrors.NewIsDirectoryError("")
		}
		if handle.flags.Has(OpenAppend) {
			handle.cursor = inode.Size
		}
		return tx.WriteRange(handle.ino, handle.cursor, data)
	})
	if err != nil {
		return 0, err
	}
	handle.cursor += int64(len(data))
	return len(data), nil
}

// Lseek recomputes the handle's cursor from whence and returns the new
// position. A result that would be negative fails InvalidArgument.
func (s *Session) Lseek(ctx context.Context, fd int, offset int64, whence int) (int64, error) {
	handle, err := s.fds.Get(fd)
	if err != nil {
		return 0, err
	}

	handle.mu.Lock()
	defer handle.mu.Unlock()

	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = handle.cursor
	case SeekEnd:
		if handle.isHost() {
			info, serr := handle.hostFile.Stat()
			if serr != nil {
				return 0, hostErr(serr)
			}
			base = info.Size()
		} else {
			err = handle.mount.Store.View(ctx, func(tx *store.Tx) error {
				inode, gerr := tx.GetInode(handle.ino)
				if gerr != nil {
					return gerr
				}
				base = inode.Size
				return nil
			})
			if err != nil {
				return 0, err
			}
		}
	default:
		return 0, vfserrors.NewInvalidArgumentError("invalid whence")
	}

	newCursor := base + offset
	if newCursor < 0 {
		return 0, vfserrors.NewInvalidArgumentError("negative seek offset")
	}
	handle.cursor = newCursor
	return newCursor, nil
}

// Dup binds a fresh descriptor to the same open-file instance as fd.
// Cursor and flags are shared between the two descriptors.
func (s *Session) Dup(ctx context.Context, fd int) (int, error) {
	return s.fds.Dup(fd)
}

// Dup2 binds newFD to the same open-file instance as oldFD, silently
// closing whatever newFD referred to before.
func (s *Session) Dup2(ctx context.Context, oldFD, newFD int) (int, error) {
	displaced, last, err := s.fds.Dup2(oldFD, newFD)
	if err != nil {
		return 0, err
	}
	if displaced != nil && last {
		if rerr := s.releaseHandle(ctx, displaced); rerr != nil {
			return 0, rerr
		}
	}
	return newFD, nil
}

// CloseFD removes the descriptor binding. When that was the last binding
// to the open-file instance, the inode's open-handle count drops; an
// orphaned inode (no directory entries left) is deleted at that point.
func (s *Session) CloseFD(ctx context.Context, fd int) error {
	handle, last, err := s.fds.Remove(fd)
	if err != nil {
		return err
	}
	if !last {
		return nil
	}
	return s.releaseHandle(ctx, handle)
}

// Fstat returns metadata for the object behind an open descriptor. Works
// on orphaned inodes, which no path resolves to anymore.
func (s *Session) Fstat(ctx context.Context, fd int) (*Stat, error) {
	handle, err := s.fds.Get(fd)
	if err != nil {
		return nil, err
	}

	if handle.isHost() {
		info, serr := handle.hostFile.Stat()
		if serr != nil {
			return nil, hostErr(serr)
		}
		return hostStatFromInfo(info), nil
	}

	var result *Stat
	err = handle.mount.Store.View(ctx, func(tx *store.Tx) error {
		inode, err := tx.GetInode(handle.ino)
		if err != nil {
			return err
		}
		nlink, err := tx.CountDentries(handle.ino)
		if err != nil {
			return err
		}
		result = statFromInode(inode, nlink)
		return nil
	})
	return result, err
}
