// Package kvstore provides a keyed value store for agent state, persisted
// in the same SQLite database as the filesystem records. Values are JSON
// encoded; access is direct by key, never through the filesystem surface.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agentfs/agentfs/internal/logger"
	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
)

// Entry is one persisted key-value pair.
type Entry struct {
	Key       string `gorm:"column:key;primaryKey"`
	Value     []byte `gorm:"column:value;not null"`
	CreatedAt int64  `gorm:"column:created_at;not null"`
	UpdatedAt int64  `gorm:"column:updated_at;not null"`
}

// TableName overrides the GORM naming convention to keep the on-disk schema
// stable across releases.
func (Entry) TableName() string {
	return "kv_store"
}

// KV is the keyed value store. Safe for concurrent use.
type KV struct {
	db *gorm.DB
}

// New migrates the kv_store table on db and returns the store. The db is
// typically shared with the filesystem record store.
func New(db *gorm.DB) (*KV, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv schema: %w", err)
	}
	return &KV{db: db}, nil
}

// Set stores value under key, JSON encoding it. An existing key is
// overwritten and its updated_at refreshed.
func (kv *KV) Set(ctx context.Context, key string, value any) error {
	if key == "" {
		return vfserrors.NewInvalidArgumentError("key must not be empty")
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return vfserrors.NewInvalidArgumentError(fmt.Sprintf("value is not JSON encodable: %v", err))
	}

	now := time.Now().Unix()
	err = kv.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{"value": encoded, "updated_at": now}),
	}).Create(&Entry{
		Key:       key,
		Value:     encoded,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
	if err != nil {
		return err
	}
	logger.Debug("kv key set", logger.Key(key))
	return nil
}

// Get decodes the value stored under key into out.
func (kv *KV) Get(ctx context.Context, key string, out any) error {
	var entry Entry
	err := kv.db.WithContext(ctx).First(&entry, "key = ?", key).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return vfserrors.NewNotFoundError(key)
		}
		return err
	}
	if err := json.Unmarshal(entry.Value, out); err != nil {
		return vfserrors.NewCorruptionError(fmt.Sprintf("stored value for %q is not valid JSON: %v", key, err))
	}
	return nil
}

// GetRaw returns the stored JSON bytes for key without decoding.
func (kv *KV) GetRaw(ctx context.Context, key string) ([]byte, error) {
	var entry Entry
	err := kv.db.WithContext(ctx).First(&entry, "key = ?", key).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, vfserrors.NewNotFoundError(key)
		}
		return nil, err
	}
	return entry.Value, nil
}

// Delete removes key. Deleting a missing key fails NotFound.
func (kv *KV) Delete(ctx context.Context, key string) error {
	result := kv.db.WithContext(ctx).Delete(&Entry{}, "key = ?", key)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return vfserrors.NewNotFoundError(key)
	}
	logger.Debug("kv key deleted", logger.Key(key))
	return nil
}

// Keys returns every stored key in lexical order, optionally restricted to
// a prefix.
func (kv *KV) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	q := kv.db.WithContext(ctx).Model(&Entry{}).Order("key")
	if prefix != "" {
		q = q.Where("key LIKE ?", prefix+"%")
	}
	if err := q.Pluck("key", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

// List returns every entry in lexical key order, optionally restricted to
// a prefix.
func (kv *KV) List(ctx context.Context, prefix string) ([]Entry, error) {
	var entries []Entry
	q := kv.db.WithContext(ctx).Order("key")
	if prefix != "" {
		q = q.Where("key LIKE ?", prefix+"%")
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
