package store

import (
	"time"

	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
)

// ChunkSize is the maximum stored extent length. Larger writes are split
// into multiple ranges so single rows stay bounded.
const ChunkSize = 64 * 1024

// ============================================================================
// Data Range Operations
// ============================================================================

// ReadRange reads up to length bytes of file content starting at offset.
//
// Stored ranges overlapping the request are concatenated in offset order;
// sparse holes (regions of [0, size) covered by no range) read back as
// zeros. The read is clamped at the file size, so a short result means
// end-of-file. Overlapping stored ranges violate the range invariant and
// surface as Corruption.
func (tx *Tx) ReadRange(ino int64, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, vfserrors.NewInvalidArgumentError("negative read offset or length")
	}

	inode, err := tx.GetInode(ino)
	if err != nil {
		return nil, err
	}
	if offset >= inode.Size || length == 0 {
		return []byte{}, nil
	}
	end := offset + length
	if end > inode.Size {
		end = inode.Size
	}

	var ranges []DataRange
	err = tx.db.
		Where("ino = ? AND offset < ? AND offset + size > ?", ino, end, offset).
		Order("offset").
		Find(&ranges).Error
	if err != nil {
		return nil, err
	}

	// Zero-filled buffer; holes between ranges stay zero.
	buf := make([]byte, end-offset)
	prevEnd := int64(-1)
	for _, r := range ranges {
		if int64(len(r.Data)) != r.Size {
			return nil, vfserrors.NewCorruptionError("data range length does not match its size field")
		}
		if prevEnd > r.Offset {
			return nil, vfserrors.NewCorruptionError("overlapping data ranges")
		}
		if r.End() > inode.Size {
			return nil, vfserrors.NewCorruptionError("data range extends past inode size")
		}
		prevEnd = r.End()

		copyStart := max64(r.Offset, offset)
		copyEnd := min64(r.End(), end)
		copy(buf[copyStart-offset:copyEnd-offset], r.Data[copyStart-r.Offset:copyEnd-r.Offset])
	}

	return buf, nil
}

// WriteRange merges data into the file content at offset.
//
// Existing ranges overlapping [offset, offset+len) are trimmed or replaced;
// their non-overlapping head and tail portions are kept. The inode size
// becomes max(oldSize, offset+len). A write past the current size leaves a
// sparse hole that is never materialized as stored zeros.
func (tx *Tx) WriteRange(ino int64, offset int64, data []byte) error {
	if offset < 0 {
		return vfserrors.NewInvalidArgumentError("negative write offset")
	}

	inode, err := tx.GetInode(ino)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	if len(data) == 0 {
		inode.Mtime = now
		inode.Ctime = now
		return tx.PutInode(inode)
	}
	end := offset + int64(len(data))

	var overlapping []DataRange
	err = tx.db.
		Where("ino = ? AND offset < ? AND offset + size > ?", ino, end, offset).
		Order("offset").
		Find(&overlapping).Error
	if err != nil {
		return err
	}

	for _, r := range overlapping {
		// Keep the portion of the old range to the left of the write.
		if r.Offset < offset {
			head := DataRange{
				Ino:    ino,
				Offset: r.Offset,
				Size:   offset - r.Offset,
				Data:   append([]byte(nil), r.Data[:offset-r.Offset]...),
			}
			if err := tx.db.Create(&head).Error; err != nil {
				return err
			}
		}
		// Keep the portion to the right of the write.
		if r.End() > end {
			tail := DataRange{
				Ino:    ino,
				Offset: end,
				Size:   r.End() - end,
				Data:   append([]byte(nil), r.Data[end-r.Offset:]...),
			}
			if err := tx.db.Create(&tail).Error; err != nil {
				return err
			}
		}
		if err := tx.db.Delete(&DataRange{}, "id = ?", r.ID).Error; err != nil {
			return err
		}
	}

	// Insert the new bytes, split into bounded chunks.
	for written := 0; written < len(data); {
		n := len(data) - written
		if n > ChunkSize {
			n = ChunkSize
		}
		chunk := DataRange{
			Ino:    ino,
			Offset: offset + int64(written),
			Size:   int64(n),
			Data:   append([]byte(nil), data[written:written+n]...),
		}
		if err := tx.db.Create(&chunk).Error; err != nil {
			return err
		}
		written += n
	}

	if end > inode.Size {
		inode.Size = end
	}
	inode.Mtime = now
	inode.Ctime = now
	return tx.PutInode(inode)
}

// Truncate sets the file size to newSize. Ranges beyond the boundary are
// dropped and a range straddling it is split; extending past the current
// size leaves a sparse hole.
func (tx *Tx) Truncate(ino int64, newSize int64) error {
	if newSize < 0 {
		return vfserrors.NewInvalidArgumentError("negative truncate size")
	}

	inode, err := tx.GetInode(ino)
	if err != nil {
		return err
	}

	if err := tx.db.Where("ino = ? AND offset >= ?", ino, newSize).Delete(&DataRange{}).Error; err != nil {
		return err
	}

	var straddling []DataRange
	err = tx.db.
		Where("ino = ? AND offset < ? AND offset + size > ?", ino, newSize, newSize).
		Find(&straddling).Error
	if err != nil {
		return err
	}
	for _, r := range straddling {
		keep := newSize - r.Offset
		err = tx.db.Model(&DataRange{}).Where("id = ?", r.ID).
			Updates(map[string]any{"size": keep, "data": r.Data[:keep]}).Error
		if err != nil {
			return err
		}
	}

	now := time.Now().Unix()
	inode.Size = newSize
	inode.Mtime = now
	inode.Ctime = now
	return tx.PutInode(inode)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
