// Package audit persists a log of tool invocations made by the sandboxed
// agent, in the same SQLite database as the filesystem records. Each call is
// recorded as pending when it starts and completed or failed when it ends,
// so an interrupted run leaves an inspectable trail.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agentfs/agentfs/internal/logger"
	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
)

// Call status values.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Call is one recorded tool invocation.
type Call struct {
	ID          string `gorm:"column:id;primaryKey"`
	Name        string `gorm:"column:name;not null;index:idx_tool_calls_name"`
	Parameters  []byte `gorm:"column:parameters"`
	Result      []byte `gorm:"column:result"`
	Error       string `gorm:"column:error"`
	Status      string `gorm:"column:status;not null;index:idx_tool_calls_status"`
	StartedAt   int64  `gorm:"column:started_at;not null"`
	CompletedAt int64  `gorm:"column:completed_at"`
	DurationMs  int64  `gorm:"column:duration_ms"`
}

// TableName overrides the GORM naming convention to keep the on-disk schema
// stable across releases.
func (Call) TableName() string {
	return "tool_calls"
}

// Log is the tool-call audit log. Safe for concurrent use.
type Log struct {
	db *gorm.DB
}

// New migrates the tool_calls table on db and returns the log. The db is
// typically shared with the filesystem record store.
func New(db *gorm.DB) (*Log, error) {
	if err := db.AutoMigrate(&Call{}); err != nil {
		return nil, fmt.Errorf("failed to migrate audit schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Record inserts a pending call for the named tool and returns its id.
// Parameters are JSON encoded.
func (l *Log) Record(ctx context.Context, name string, parameters any) (string, error) {
	if name == "" {
		return "", vfserrors.NewInvalidArgumentError("tool name must not be empty")
	}

	encoded, err := json.Marshal(parameters)
	if err != nil {
		return "", vfserrors.NewInvalidArgumentError(fmt.Sprintf("parameters are not JSON encodable: %v", err))
	}

	call := &Call{
		ID:         uuid.New().String(),
		Name:       name,
		Parameters: encoded,
		Status:     StatusPending,
		StartedAt:  time.Now().UnixMilli(),
	}
	if err := l.db.WithContext(ctx).Create(call).Error; err != nil {
		return "", err
	}
	logger.Debug("tool call recorded", logger.Tool(name))
	return call.ID, nil
}

// Complete marks a pending call successful and stores its JSON-encoded
// result.
func (l *Log) Complete(ctx context.Context, id string, result any) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return vfserrors.NewInvalidArgumentError(fmt.Sprintf("result is not JSON encodable: %v", err))
	}
	return l.finish(ctx, id, map[string]any{
		"status": StatusSuccess,
		"result": encoded,
	})
}

// Fail marks a pending call failed with the given error message.
func (l *Log) Fail(ctx context.Context, id string, message string) error {
	return l.finish(ctx, id, map[string]any{
		"status": StatusError,
		"error":  message,
	})
}

func (l *Log) finish(ctx context.Context, id string, updates map[string]any) error {
	var call Call
	err := l.db.WithContext(ctx).First(&call, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return vfserrors.NewNotFoundError(id)
		}
		return err
	}
	if call.Status != StatusPending {
		return vfserrors.NewInvalidArgumentError(fmt.Sprintf("call %s already finished with status %s", id, call.Status))
	}

	now := time.Now().UnixMilli()
	updates["completed_at"] = now
	updates["duration_ms"] = now - call.StartedAt
	return l.db.WithContext(ctx).Model(&Call{}).Where("id = ?", id).Updates(updates).Error
}

// Get returns one call by id.
func (l *Log) Get(ctx context.Context, id string) (*Call, error) {
	var call Call
	err := l.db.WithContext(ctx).First(&call, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, vfserrors.NewNotFoundError(id)
		}
		return nil, err
	}
	return &call, nil
}

// List returns calls ordered newest first. Status filters when non-empty;
// limit bounds the result when positive.
func (l *Log) List(ctx context.Context, status string, limit int) ([]Call, error) {
	q := l.db.WithContext(ctx).Order("started_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var calls []Call
	if err := q.Find(&calls).Error; err != nil {
		return nil, err
	}
	return calls, nil
}
