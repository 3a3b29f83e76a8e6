package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	log, err := New(db)
	require.NoError(t, err)
	return log
}

func TestRecordAndComplete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log := openTestLog(t)

	id, err := log.Record(ctx, "read_file", map[string]string{"path": "/workspace/main.go"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	call, err := log.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "read_file", call.Name)
	assert.Equal(t, StatusPending, call.Status)
	assert.JSONEq(t, `{"path":"/workspace/main.go"}`, string(call.Parameters))
	assert.NotZero(t, call.StartedAt)
	assert.Zero(t, call.CompletedAt)

	require.NoError(t, log.Complete(ctx, id, map[string]int{"bytes": 120}))

	call, err = log.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, call.Status)
	assert.JSONEq(t, `{"bytes":120}`, string(call.Result))
	assert.NotZero(t, call.CompletedAt)
	assert.GreaterOrEqual(t, call.DurationMs, int64(0))
}

func TestRecordAndFail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log := openTestLog(t)

	id, err := log.Record(ctx, "run_command", map[string]string{"cmd": "make"})
	require.NoError(t, err)
	require.NoError(t, log.Fail(ctx, id, "exit status 2"))

	call, err := log.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusError, call.Status)
	assert.Equal(t, "exit status 2", call.Error)
}

func TestFinishTwiceRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log := openTestLog(t)

	id, err := log.Record(ctx, "tool", nil)
	require.NoError(t, err)
	require.NoError(t, log.Complete(ctx, id, "ok"))

	err = log.Fail(ctx, id, "too late")
	require.Error(t, err)

	var vfsErr *vfserrors.VFSError
	require.ErrorAs(t, err, &vfsErr)
	assert.Equal(t, vfserrors.ErrInvalidArgument, vfsErr.Code)
}

func TestRecordEmptyName(t *testing.T) {
	t.Parallel()
	log := openTestLog(t)

	_, err := log.Record(context.Background(), "", nil)
	require.Error(t, err)
}

func TestFinishUnknownID(t *testing.T) {
	t.Parallel()
	log := openTestLog(t)

	err := log.Complete(context.Background(), "no-such-id", nil)
	assert.True(t, vfserrors.IsNotFoundError(err))

	_, err = log.Get(context.Background(), "no-such-id")
	assert.True(t, vfserrors.IsNotFoundError(err))
}

func TestListFiltersAndLimits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log := openTestLog(t)

	for i := 0; i < 3; i++ {
		id, err := log.Record(ctx, "tool", nil)
		require.NoError(t, err)
		if i == 0 {
			require.NoError(t, log.Fail(ctx, id, "boom"))
		} else {
			require.NoError(t, log.Complete(ctx, id, nil))
		}
	}

	all, err := log.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	failed, err := log.List(ctx, StatusError, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].Error)

	limited, err := log.List(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
