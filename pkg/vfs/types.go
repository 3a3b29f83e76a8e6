// Package vfs implements the virtual filesystem engine for sandboxed agent
// processes: path resolution over a transactional record store, a virtual
// file-descriptor table with POSIX handle semantics, and the mount
// resolution and dispatch layer that routes intercepted operations either
// into the managed store or through to a bind-mounted host directory.
package vfs

import (
	"time"

	"github.com/agentfs/agentfs/pkg/vfs/store"
)

// OpenFlags control open() behavior. They mirror the POSIX flags the
// interception substrate delivers.
type OpenFlags uint32

const (
	// OpenRead opens for reading.
	OpenRead OpenFlags = 1 << iota
	// OpenWrite opens for writing.
	OpenWrite
	// OpenCreate creates the file if it does not exist.
	OpenCreate
	// OpenExclusive makes create fail if the file already exists.
	OpenExclusive
	// OpenTruncate truncates the file to zero length on open.
	OpenTruncate
	// OpenAppend positions every write at the current end of file.
	OpenAppend
)

// Has reports whether all bits in f are set.
func (o OpenFlags) Has(f OpenFlags) bool { return o&f == f }

// Whence values for Lseek.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// MaxSymlinkDepth bounds symlink indirection during path resolution. A
// resolution that chases more links than this fails TooManyIndirections,
// matching kernel behavior for cycles without tracking a visited set.
const MaxSymlinkDepth = 40

// Blksize is the block size reported by stat.
const Blksize = 4096

// Stat is the metadata returned for one filesystem object, shaped like the
// POSIX stat result the substrate expects.
type Stat struct {
	Ino     int64
	Mode    uint32
	Nlink   int64
	UID     uint32
	GID     uint32
	Size    int64
	Blksize int64
	Blocks  int64
	Atime   time.Time
	Mtime   time.Time
	Ctime   time.Time
}

// IsDir reports whether the object is a directory.
func (s *Stat) IsDir() bool { return s.Mode&store.ModeTypeMask == store.ModeDir }

// IsSymlink reports whether the entry is a symbolic link.
func (s *Stat) IsSymlink() bool { return s.Mode&store.ModeTypeMask == store.ModeSymlink }

// statFromInode converts a stored inode plus its computed link count.
func statFromInode(inode *store.Inode, nlink int64) *Stat {
	return &Stat{
		Ino:     inode.Ino,
		Mode:    inode.Mode,
		Nlink:   nlink,
		UID:     inode.UID,
		GID:     inode.GID,
		Size:    inode.Size,
		Blksize: Blksize,
		Blocks:  (inode.Size + 511) / 512,
		Atime:   time.Unix(inode.Atime, 0),
		Mtime:   time.Unix(inode.Mtime, 0),
		Ctime:   time.Unix(inode.Ctime, 0),
	}
}
