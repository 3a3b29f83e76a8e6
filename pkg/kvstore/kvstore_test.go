package kvstore

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

func openTestKV(t *testing.T) *KV {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "kv.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	kv, err := New(db)
	require.NoError(t, err)
	return kv
}

func TestSetGetRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := openTestKV(t)

	type checkpoint struct {
		Step  int    `json:"step"`
		Label string `json:"label"`
	}

	require.NoError(t, kv.Set(ctx, "agent/checkpoint", checkpoint{Step: 7, Label: "after-build"}))

	var got checkpoint
	require.NoError(t, kv.Get(ctx, "agent/checkpoint", &got))
	assert.Equal(t, checkpoint{Step: 7, Label: "after-build"}, got)
}

func TestSetOverwritesExisting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := openTestKV(t)

	require.NoError(t, kv.Set(ctx, "counter", 1))
	require.NoError(t, kv.Set(ctx, "counter", 2))

	var got int
	require.NoError(t, kv.Get(ctx, "counter", &got))
	assert.Equal(t, 2, got)

	keys, err := kv.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"counter"}, keys)
}

func TestSetEmptyKey(t *testing.T) {
	t.Parallel()
	kv := openTestKV(t)

	err := kv.Set(context.Background(), "", "value")
	require.Error(t, err)

	var vfsErr *vfserrors.VFSError
	require.ErrorAs(t, err, &vfsErr)
	assert.Equal(t, vfserrors.ErrInvalidArgument, vfsErr.Code)
}

func TestGetMissingKey(t *testing.T) {
	t.Parallel()
	kv := openTestKV(t)

	var out string
	err := kv.Get(context.Background(), "nope", &out)
	assert.True(t, vfserrors.IsNotFoundError(err))

	_, err = kv.GetRaw(context.Background(), "nope")
	assert.True(t, vfserrors.IsNotFoundError(err))
}

func TestGetRaw(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := openTestKV(t)

	require.NoError(t, kv.Set(ctx, "raw", map[string]int{"a": 1}))

	raw, err := kv.GetRaw(ctx, "raw")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

func TestDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := openTestKV(t)

	require.NoError(t, kv.Set(ctx, "gone", true))
	require.NoError(t, kv.Delete(ctx, "gone"))

	var out bool
	assert.True(t, vfserrors.IsNotFoundError(kv.Get(ctx, "gone", &out)))

	err := kv.Delete(ctx, "gone")
	assert.True(t, vfserrors.IsNotFoundError(err))
}

func TestKeysAndListWithPrefix(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := openTestKV(t)

	require.NoError(t, kv.Set(ctx, "task/1", "a"))
	require.NoError(t, kv.Set(ctx, "task/2", "b"))
	require.NoError(t, kv.Set(ctx, "other", "c"))

	keys, err := kv.Keys(ctx, "task/")
	require.NoError(t, err)
	assert.Equal(t, []string{"task/1", "task/2"}, keys)

	all, err := kv.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"other", "task/1", "task/2"}, all)

	entries, err := kv.List(ctx, "task/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "task/1", entries[0].Key)
	assert.NotZero(t, entries[0].CreatedAt)
}
