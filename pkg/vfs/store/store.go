// Package store persists the virtual filesystem state (inodes, directory
// entries, data ranges, and symlink targets) as records in a transactional
// SQLite database accessed through GORM.
//
// The store exposes CRUD primitives only. Multi-step filesystem semantics
// (create, rename, deferred deletion) are composed by the vfs package inside
// a single WithTransaction call so readers never observe partial results.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agentfs/agentfs/pkg/metrics"
	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
)

// Config contains store configuration.
type Config struct {
	// Path is the path to the SQLite database file.
	Path string `mapstructure:"path" yaml:"path,omitempty"`

	// BusyTimeout is how long a writer waits for the database write lock
	// before the operation surfaces StorageBusy. Default: 5s.
	BusyTimeout time.Duration `mapstructure:"busy_timeout" yaml:"busy_timeout"`

	// BusyRetries is how many times a busy transaction is retried with
	// backoff before StorageBusy is returned to the caller. Default: 3.
	BusyRetries int `mapstructure:"busy_retries" yaml:"busy_retries"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.BusyTimeout == 0 {
		c.BusyTimeout = 5 * time.Second
	}
	if c.BusyRetries == 0 {
		c.BusyRetries = 3
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("sqlite path is required")
	}
	return nil
}

// Store is the SQLite-backed record store for one filesystem instance.
//
// Thread safety: safe for concurrent use. SQLite in WAL mode provides
// single-writer/multiple-reader semantics; write contention past the busy
// timeout surfaces as StorageBusy rather than blocking indefinitely.
type Store struct {
	db      *gorm.DB
	config  *Config
	metrics metrics.StoreMetrics
}

// SetMetrics attaches a transaction metrics recorder. A nil recorder
// disables collection. Call before the store is shared across goroutines.
func (s *Store) SetMetrics(m metrics.StoreMetrics) {
	s.metrics = m
}

// Open opens (creating if necessary) the database at cfg.Path, migrates the
// schema, and ensures the root directory inode exists.
func Open(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// SQLite pragmas for concurrent access:
	// - journal_mode(WAL): concurrent readers with a single writer
	// - busy_timeout: bounded wait for the write lock
	// - foreign_keys: dentry/data/symlink rows cannot outlive their inode
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	s := &Store{
		db:     db,
		config: cfg,
	}

	if err := s.ensureRoot(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize root directory: %w", err)
	}

	return s, nil
}

// ensureRoot creates the root directory inode (ino=1, mode 040755) on a
// fresh database. On an existing database it verifies the root invariant.
func (s *Store) ensureRoot(ctx context.Context) error {
	return s.WithTransaction(ctx, func(tx *Tx) error {
		var root Inode
		err := tx.db.First(&root, "ino = ?", RootIno).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			now := time.Now().Unix()
			return tx.db.Create(&Inode{
				Ino:   RootIno,
				Mode:  ModeDir | 0o755,
				Atime: now,
				Mtime: now,
				Ctime: now,
			}).Error
		}
		if err != nil {
			return err
		}
		if !root.IsDir() {
			return vfserrors.NewCorruptionError("root inode is not a directory")
		}
		return nil
	})
}

// DB returns the underlying GORM database connection. The sibling kv and
// audit stores attach their schemas through it.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Healthcheck verifies the store is operational and the root invariant holds.
func (s *Store) Healthcheck(ctx context.Context) error {
	var root Inode
	err := s.db.WithContext(ctx).First(&root, "ino = ?", RootIno).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return vfserrors.NewCorruptionError("root inode missing")
	}
	if err != nil {
		return err
	}
	if !root.IsDir() {
		return vfserrors.NewCorruptionError("root inode is not a directory")
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isBusyError checks if the error is an SQLite lock contention failure.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database table is locked")
}

// isUniqueConstraintError checks if the error is a unique constraint
// violation (duplicate name within one parent directory).
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// convertNotFound converts gorm.ErrRecordNotFound to the given domain error.
func convertNotFound(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}
