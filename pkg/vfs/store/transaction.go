package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/agentfs/agentfs/internal/logger"
	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
)

// Tx provides all record operations available within a transactional
// context. All CRUD methods on Tx see a consistent snapshot and either
// commit together or roll back together.
//
// Tx objects from WithTransaction are NOT safe for concurrent use and must
// not be retained after the callback returns.
type Tx struct {
	db *gorm.DB
}

// WithTransaction executes fn within a database transaction.
//
// If fn returns an error, the transaction is rolled back and no change is
// visible to any reader. If fn returns nil, the transaction is committed.
//
// Lock contention (SQLITE_BUSY past the busy timeout) is retried with
// bounded backoff; once retries are exhausted the error surfaces as
// StorageBusy, which the caller may retry. All other errors are returned
// immediately on first occurrence.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	start := time.Now()
	backoff := 10 * time.Millisecond

	var err error
	for attempt := 0; attempt <= s.config.BusyRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
			return fn(&Tx{db: gtx})
		})
		if !isBusyError(err) {
			s.recordTransaction(start, attempt, err)
			return err
		}

		logger.Debug("database busy, backing off",
			logger.DBPath(s.config.Path),
			logger.Attempt(attempt+1),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	err = vfserrors.NewStorageBusyError("store write lock contention")
	s.recordTransaction(start, s.config.BusyRetries, err)
	return err
}

func (s *Store) recordTransaction(start time.Time, retries int, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordTransaction(time.Since(start), retries, err)
}

// View executes fn within a read-only snapshot. It shares the retry
// behavior of WithTransaction but signals no intent to write.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	return s.WithTransaction(ctx, fn)
}
