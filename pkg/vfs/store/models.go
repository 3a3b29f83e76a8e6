package store

// Persisted schema for the virtual filesystem.
//
// Four logical tables hold the entire filesystem state so the database file
// remains a valid snapshot and audit artifact independent of the process
// that wrote it:
//
//   - fs_inode:   per-object metadata keyed by inode number
//   - fs_dentry:  (parent, name) -> inode bindings; hierarchy and hard links
//   - fs_data:    byte-range records of file content, offset-ordered per inode
//   - fs_symlink: link target strings keyed by owning inode
//
// Field names and semantics are part of the on-disk contract and must not
// change without a migration.

// File type bits within an inode mode, matching Unix S_IFMT encoding.
const (
	ModeTypeMask uint32 = 0o170000
	ModeRegular  uint32 = 0o100000
	ModeDir      uint32 = 0o040000
	ModeSymlink  uint32 = 0o120000
)

// RootIno is the inode number of the filesystem root directory.
// It always exists and is always a directory.
const RootIno int64 = 1

// Inode holds per-object metadata: type and permission bits, ownership,
// size, and timestamps (unix seconds).
type Inode struct {
	Ino   int64  `gorm:"column:ino;primaryKey;autoIncrement"`
	Mode  uint32 `gorm:"column:mode;not null"`
	UID   uint32 `gorm:"column:uid;not null;default:0"`
	GID   uint32 `gorm:"column:gid;not null;default:0"`
	Size  int64  `gorm:"column:size;not null;default:0"`
	Atime int64  `gorm:"column:atime;not null"`
	Mtime int64  `gorm:"column:mtime;not null"`
	Ctime int64  `gorm:"column:ctime;not null"`
}

// TableName overrides the GORM default.
func (Inode) TableName() string { return "fs_inode" }

// IsDir reports whether the inode is a directory.
func (i *Inode) IsDir() bool { return i.Mode&ModeTypeMask == ModeDir }

// IsRegular reports whether the inode is a regular file.
func (i *Inode) IsRegular() bool { return i.Mode&ModeTypeMask == ModeRegular }

// IsSymlink reports whether the inode is a symbolic link.
func (i *Inode) IsSymlink() bool { return i.Mode&ModeTypeMask == ModeSymlink }

// Dentry binds a name within a parent directory to an inode.
// Hard links are multiple dentries pointing at one inode.
type Dentry struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string `gorm:"column:name;not null;uniqueIndex:idx_fs_dentry_parent_name,priority:2"`
	ParentIno int64  `gorm:"column:parent_ino;not null;uniqueIndex:idx_fs_dentry_parent_name,priority:1"`
	Ino       int64  `gorm:"column:ino;not null;index"`
}

// TableName overrides the GORM default.
func (Dentry) TableName() string { return "fs_dentry" }

// DataRange is one contiguous byte extent of file content.
//
// Ranges belonging to one inode are non-overlapping. Regions of [0, size)
// not covered by any range are sparse holes and read back as zeros; holes
// are never materialized as stored zero bytes.
type DataRange struct {
	ID     int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Ino    int64  `gorm:"column:ino;not null;index:idx_fs_data_ino_offset,priority:1"`
	Offset int64  `gorm:"column:offset;not null;index:idx_fs_data_ino_offset,priority:2"`
	Size   int64  `gorm:"column:size;not null"`
	Data   []byte `gorm:"column:data;not null"`
}

// TableName overrides the GORM default.
func (DataRange) TableName() string { return "fs_data" }

// End returns the exclusive end offset of the range.
func (r *DataRange) End() int64 { return r.Offset + r.Size }

// Symlink holds the target string for a symlink inode.
// A row exists iff the owning inode's type is symlink.
type Symlink struct {
	Ino    int64  `gorm:"column:ino;primaryKey"`
	Target string `gorm:"column:target;not null"`
}

// TableName overrides the GORM default.
func (Symlink) TableName() string { return "fs_symlink" }

// DirEntry is a single readdir result: a basename and the inode it binds.
type DirEntry struct {
	Name string
	Ino  int64
	Mode uint32
}

// allModels returns every model automigrated at store open.
func allModels() []any {
	return []any{
		&Inode{},
		&Dentry{},
		&DataRange{},
		&Symlink{},
	}
}
