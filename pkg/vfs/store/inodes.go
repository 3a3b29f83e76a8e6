package store

import (
	"time"

	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
)

// ============================================================================
// Inode Operations
// ============================================================================

// CreateInode allocates a new inode with size 0 and timestamps set to now.
// The inode number is assigned by the database. The new inode has no
// directory entry yet; the caller links it in the same transaction.
func (tx *Tx) CreateInode(mode, uid, gid uint32) (*Inode, error) {
	now := time.Now().Unix()
	inode := &Inode{
		Mode:  mode,
		UID:   uid,
		GID:   gid,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
	if err := tx.db.Create(inode).Error; err != nil {
		return nil, err
	}
	return inode, nil
}

// GetInode retrieves inode metadata by number.
func (tx *Tx) GetInode(ino int64) (*Inode, error) {
	var inode Inode
	err := tx.db.First(&inode, "ino = ?", ino).Error
	if err != nil {
		return nil, convertNotFound(err, vfserrors.NewNotFoundError(""))
	}
	return &inode, nil
}

// PutInode stores updated inode metadata.
func (tx *Tx) PutInode(inode *Inode) error {
	return tx.db.Save(inode).Error
}

// DeleteInode removes an inode and, through cascading deletes composed
// here, its data ranges and symlink target. Callers must have already
// verified the entry count and handle-reference count are both zero.
func (tx *Tx) DeleteInode(ino int64) error {
	if ino == RootIno {
		return vfserrors.NewInvalidArgumentError("cannot delete root inode")
	}
	if err := tx.db.Where("ino = ?", ino).Delete(&DataRange{}).Error; err != nil {
		return err
	}
	if err := tx.db.Where("ino = ?", ino).Delete(&Symlink{}).Error; err != nil {
		return err
	}
	res := tx.db.Where("ino = ?", ino).Delete(&Inode{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vfserrors.NewNotFoundError("")
	}
	return nil
}

// TouchMtime updates the modify and change times of an inode to now.
func (tx *Tx) TouchMtime(ino int64) error {
	now := time.Now().Unix()
	return tx.db.Model(&Inode{}).Where("ino = ?", ino).
		Updates(map[string]any{"mtime": now, "ctime": now}).Error
}
