package store

import (
	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
)

// ============================================================================
// Directory Entry Operations
// ============================================================================

// Lookup resolves a name in a parent directory to an inode number.
func (tx *Tx) Lookup(parentIno int64, name string) (int64, error) {
	var dentry Dentry
	err := tx.db.First(&dentry, "parent_ino = ? AND name = ?", parentIno, name).Error
	if err != nil {
		return 0, convertNotFound(err, vfserrors.NewNotFoundError(name))
	}
	return dentry.Ino, nil
}

// InsertDentry binds name to ino within parentIno.
// Returns AlreadyExists if the name is occupied.
func (tx *Tx) InsertDentry(parentIno int64, name string, ino int64) error {
	err := tx.db.Create(&Dentry{
		Name:      name,
		ParentIno: parentIno,
		Ino:       ino,
	}).Error
	if isUniqueConstraintError(err) {
		return vfserrors.NewAlreadyExistsError(name)
	}
	return err
}

// DeleteDentry removes the binding of name within parentIno.
// Returns NotFound if the name is not bound.
func (tx *Tx) DeleteDentry(parentIno int64, name string) error {
	res := tx.db.Where("parent_ino = ? AND name = ?", parentIno, name).Delete(&Dentry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vfserrors.NewNotFoundError(name)
	}
	return nil
}

// ParentOf returns the directory containing the entry that points at ino.
// Directories carry exactly one entry, so this recovers their position in
// the tree. Returns NotFound for an orphaned or unknown inode.
func (tx *Tx) ParentOf(ino int64) (int64, error) {
	var dentry Dentry
	err := tx.db.First(&dentry, "ino = ?", ino).Error
	if err != nil {
		return 0, convertNotFound(err, vfserrors.NewNotFoundError(""))
	}
	return dentry.ParentIno, nil
}

// CountDentries returns the number of entries pointing at ino: the inode's
// link count. Zero means the inode is orphaned (or root, which has no
// parent entry).
func (tx *Tx) CountDentries(ino int64) (int64, error) {
	var count int64
	err := tx.db.Model(&Dentry{}).Where("ino = ?", ino).Count(&count).Error
	return count, err
}

// CountChildren returns the number of entries inside directory parentIno,
// used for the DirectoryNotEmpty check.
func (tx *Tx) CountChildren(parentIno int64) (int64, error) {
	var count int64
	err := tx.db.Model(&Dentry{}).Where("parent_ino = ?", parentIno).Count(&count).Error
	return count, err
}

// ListDentries returns the entries of directory parentIno ordered
// lexicographically by name, joined with each child's mode bits.
func (tx *Tx) ListDentries(parentIno int64) ([]DirEntry, error) {
	var rows []struct {
		Name string
		Ino  int64
		Mode uint32
	}
	err := tx.db.Model(&Dentry{}).
		Select("fs_dentry.name, fs_dentry.ino, fs_inode.mode").
		Joins("JOIN fs_inode ON fs_inode.ino = fs_dentry.ino").
		Where("fs_dentry.parent_ino = ?", parentIno).
		Order("fs_dentry.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]DirEntry, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.Name]; dup {
			return nil, vfserrors.NewCorruptionError("duplicate entry name in directory")
		}
		seen[row.Name] = struct{}{}
		entries = append(entries, DirEntry{Name: row.Name, Ino: row.Ino, Mode: row.Mode})
	}
	return entries, nil
}
