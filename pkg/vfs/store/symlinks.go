package store

import (
	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
)

// ============================================================================
// Symlink Target Operations
// ============================================================================

// SetSymlink stores the target string for a symlink inode.
func (tx *Tx) SetSymlink(ino int64, target string) error {
	return tx.db.Save(&Symlink{Ino: ino, Target: target}).Error
}

// GetSymlink retrieves the target string for a symlink inode.
func (tx *Tx) GetSymlink(ino int64) (string, error) {
	var link Symlink
	err := tx.db.First(&link, "ino = ?", ino).Error
	if err != nil {
		return "", convertNotFound(err, vfserrors.NewNotFoundError(""))
	}
	return link.Target, nil
}
