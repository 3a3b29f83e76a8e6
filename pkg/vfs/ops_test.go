package vfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
	"github.com/agentfs/agentfs/pkg/vfs/store"
)

// newTestSession builds a session from mount spec strings. With no specs
// it provides a single managed mount at /workspace backed by a temp store.
func newTestSession(t *testing.T, specs ...string) *Session {
	t.Helper()

	if len(specs) == 0 {
		specs = []string{"type=managed,src=" + filepath.Join(t.TempDir(), "ws.db") + ",dst=/workspace"}
	}

	parsed := make([]*MountSpec, 0, len(specs))
	for _, spec := range specs {
		ms, err := ParseMountSpec(spec)
		require.NoError(t, err)
		parsed = append(parsed, ms)
	}

	s, err := NewSession(SessionConfig{Mounts: parsed})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func errCode(t *testing.T, err error) vfserrors.ErrorCode {
	t.Helper()
	var vfsErr *vfserrors.VFSError
	require.ErrorAs(t, err, &vfsErr)
	return vfsErr.Code
}

// ============================================================================
// Directories
// ============================================================================

func TestMkdirAndStat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.Mkdir(ctx, "/workspace/src", 0o750))

	st, err := s.Stat(ctx, "/workspace/src")
	require.NoError(t, err)
	assert.True(t, st.IsDir())
	assert.Equal(t, store.ModeDir|0o750, st.Mode)
}

func TestMkdirExistingName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.Mkdir(ctx, "/workspace/src", 0o755))
	err := s.Mkdir(ctx, "/workspace/src", 0o755)
	require.Error(t, err)
	assert.True(t, vfserrors.IsAlreadyExistsError(err))
}

func TestMkdirMissingParent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	err := s.Mkdir(ctx, "/workspace/no/such/dir", 0o755)
	require.Error(t, err)
	assert.True(t, vfserrors.IsNotFoundError(err))
}

func TestReaddirSorted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.WriteFile(ctx, "/workspace/zz.txt", []byte("z"), 0o644))
	require.NoError(t, s.WriteFile(ctx, "/workspace/aa.txt", []byte("a"), 0o644))
	require.NoError(t, s.Mkdir(ctx, "/workspace/mid", 0o755))

	names, err := s.Readdir(ctx, "/workspace")
	require.NoError(t, err)
	assert.Equal(t, []string{"aa.txt", "mid", "zz.txt"}, names)
}

func TestReaddirOnFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.WriteFile(ctx, "/workspace/f", []byte("x"), 0o644))
	_, err := s.Readdir(ctx, "/workspace/f")
	require.Error(t, err)
	assert.Equal(t, vfserrors.ErrNotDirectory, errCode(t, err))
}

func TestRmdir(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.Mkdir(ctx, "/workspace/empty", 0o755))
	require.NoError(t, s.Rmdir(ctx, "/workspace/empty"))

	_, err := s.Stat(ctx, "/workspace/empty")
	assert.True(t, vfserrors.IsNotFoundError(err))
}

func TestRmdirNotEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.Mkdir(ctx, "/workspace/dir", 0o755))
	require.NoError(t, s.WriteFile(ctx, "/workspace/dir/f", []byte("x"), 0o644))

	err := s.Rmdir(ctx, "/workspace/dir")
	require.Error(t, err)
	assert.Equal(t, vfserrors.ErrNotEmpty, errCode(t, err))
}

func TestRmdirOnFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.WriteFile(ctx, "/workspace/f", []byte("x"), 0o644))
	err := s.Rmdir(ctx, "/workspace/f")
	assert.Equal(t, vfserrors.ErrNotDirectory, errCode(t, err))
}

// ============================================================================
// Files
// ============================================================================

func TestWriteFileReadFileRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	content := []byte("hello agent filesystem")
	require.NoError(t, s.WriteFile(ctx, "/workspace/hello.txt", content, 0o644))

	got, err := s.ReadFile(ctx, "/workspace/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	st, err := s.Stat(ctx, "/workspace/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), st.Size)
	assert.Equal(t, int64(1), st.Nlink)
	assert.Equal(t, int64(Blksize), st.Blksize)
}

func TestWriteFileCreatesParents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.WriteFile(ctx, "/workspace/a/b/c.txt", []byte("deep"), 0o644))

	st, err := s.Stat(ctx, "/workspace/a/b")
	require.NoError(t, err)
	assert.True(t, st.IsDir())

	got, err := s.ReadFile(ctx, "/workspace/a/b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("deep"), got)
}

func TestWriteFileReplacesContent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.WriteFile(ctx, "/workspace/f", []byte("long original content"), 0o644))
	require.NoError(t, s.WriteFile(ctx, "/workspace/f", []byte("new"), 0o644))

	got, err := s.ReadFile(ctx, "/workspace/f")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestReadFileOnDirectory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.Mkdir(ctx, "/workspace/d", 0o755))
	_, err := s.ReadFile(ctx, "/workspace/d")
	assert.Equal(t, vfserrors.ErrIsDirectory, errCode(t, err))
}

func TestTruncateGrowAndShrink(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.WriteFile(ctx, "/workspace/f", []byte("0123456789"), 0o644))

	require.NoError(t, s.Truncate(ctx, "/workspace/f", 4))
	got, err := s.ReadFile(ctx, "/workspace/f")
	require.NoError(t, err)
	assert.Equal(t, []byte("0123"), got)

	require.NoError(t, s.Truncate(ctx, "/workspace/f", 8))
	got, err = s.ReadFile(ctx, "/workspace/f")
	require.NoError(t, err)
	assert.Equal(t, []byte("0123\x00\x00\x00\x00"), got)
}

// ============================================================================
// Hard Links
// ============================================================================

func TestLinkSharesInode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.WriteFile(ctx, "/workspace/orig", []byte("shared"), 0o644))
	require.NoError(t, s.Link(ctx, "/workspace/orig", "/workspace/alias"))

	origStat, err := s.Stat(ctx, "/workspace/orig")
	require.NoError(t, err)
	aliasStat, err := s.Stat(ctx, "/workspace/alias")
	require.NoError(t, err)
	assert.Equal(t, origStat.Ino, aliasStat.Ino)
	assert.Equal(t, int64(2), origStat.Nlink)

	// Content stays reachable through the remaining name.
	require.NoError(t, s.Unlink(ctx, "/workspace/orig"))
	got, err := s.ReadFile(ctx, "/workspace/alias")
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), got)

	aliasStat, err = s.Stat(ctx, "/workspace/alias")
	require.NoError(t, err)
	assert.Equal(t, int64(1), aliasStat.Nlink)
}

func TestLinkDirectoryRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.Mkdir(ctx, "/workspace/d", 0o755))
	err := s.Link(ctx, "/workspace/d", "/workspace/d2")
	assert.Equal(t, vfserrors.ErrIsDirectory, errCode(t, err))
}

// ============================================================================
// Rename
// ============================================================================

func TestRenameSimple(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.WriteFile(ctx, "/workspace/a", []byte("x"), 0o644))
	require.NoError(t, s.Rename(ctx, "/workspace/a", "/workspace/b"))

	_, err := s.Stat(ctx, "/workspace/a")
	assert.True(t, vfserrors.IsNotFoundError(err))

	got, err := s.ReadFile(ctx, "/workspace/b")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestRenameReplacesDestination(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.WriteFile(ctx, "/workspace/src", []byte("winner"), 0o644))
	require.NoError(t, s.WriteFile(ctx, "/workspace/dst", []byte("loser"), 0o644))

	require.NoError(t, s.Rename(ctx, "/workspace/src", "/workspace/dst"))

	got, err := s.ReadFile(ctx, "/workspace/dst")
	require.NoError(t, err)
	assert.Equal(t, []byte("winner"), got)

	_, err = s.Stat(ctx, "/workspace/src")
	assert.True(t, vfserrors.IsNotFoundError(err))
}

func TestRenameOntoNonEmptyDirectory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.Mkdir(ctx, "/workspace/src", 0o755))
	require.NoError(t, s.Mkdir(ctx, "/workspace/dst", 0o755))
	require.NoError(t, s.WriteFile(ctx, "/workspace/dst/f", []byte("x"), 0o644))

	err := s.Rename(ctx, "/workspace/src", "/workspace/dst")
	assert.Equal(t, vfserrors.ErrNotEmpty, errCode(t, err))
}

func TestRenameAcrossDirectories(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.Mkdir(ctx, "/workspace/from", 0o755))
	require.NoError(t, s.Mkdir(ctx, "/workspace/to", 0o755))
	require.NoError(t, s.WriteFile(ctx, "/workspace/from/f", []byte("moved"), 0o644))

	require.NoError(t, s.Rename(ctx, "/workspace/from/f", "/workspace/to/g"))

	got, err := s.ReadFile(ctx, "/workspace/to/g")
	require.NoError(t, err)
	assert.Equal(t, []byte("moved"), got)

	names, err := s.Readdir(ctx, "/workspace/from")
	require.NoError(t, err)
	assert.Empty(t, names)
}

// ============================================================================
// Symlinks
// ============================================================================

func TestSymlinkReadlink(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.Symlink(ctx, "target.txt", "/workspace/link"))

	target, err := s.Readlink(ctx, "/workspace/link")
	require.NoError(t, err)
	assert.Equal(t, "target.txt", target)

	st, err := s.Lstat(ctx, "/workspace/link")
	require.NoError(t, err)
	assert.Equal(t, store.ModeSymlink, st.Mode&store.ModeTypeMask)
	assert.Equal(t, int64(len("target.txt")), st.Size)
}

func TestSymlinkFollowedByStatAndRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.WriteFile(ctx, "/workspace/real.txt", []byte("via link"), 0o644))
	require.NoError(t, s.Symlink(ctx, "real.txt", "/workspace/link"))

	st, err := s.Stat(ctx, "/workspace/link")
	require.NoError(t, err)
	assert.Equal(t, store.ModeRegular, st.Mode&store.ModeTypeMask)

	got, err := s.ReadFile(ctx, "/workspace/link")
	require.NoError(t, err)
	assert.Equal(t, []byte("via link"), got)
}

func TestSymlinkRelativeWithDotDot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.Mkdir(ctx, "/workspace/a", 0o755))
	require.NoError(t, s.Mkdir(ctx, "/workspace/b", 0o755))
	require.NoError(t, s.WriteFile(ctx, "/workspace/b/data", []byte("sibling"), 0o644))
	require.NoError(t, s.Symlink(ctx, "../b/data", "/workspace/a/link"))

	got, err := s.ReadFile(ctx, "/workspace/a/link")
	require.NoError(t, err)
	assert.Equal(t, []byte("sibling"), got)
}

func TestSymlinkAbsoluteTargetResolvesFromMountRoot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.Mkdir(ctx, "/workspace/deep", 0o755))
	require.NoError(t, s.WriteFile(ctx, "/workspace/top.txt", []byte("root file"), 0o644))
	require.NoError(t, s.Symlink(ctx, "/top.txt", "/workspace/deep/link"))

	got, err := s.ReadFile(ctx, "/workspace/deep/link")
	require.NoError(t, err)
	assert.Equal(t, []byte("root file"), got)
}

func TestSymlinkCycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.Symlink(ctx, "b", "/workspace/a"))
	require.NoError(t, s.Symlink(ctx, "a", "/workspace/b"))

	_, err := s.Stat(ctx, "/workspace/a")
	require.Error(t, err)
	assert.Equal(t, vfserrors.ErrTooManyLinks, errCode(t, err))
}

func TestSymlinkChainWithinBound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.WriteFile(ctx, "/workspace/end", []byte("found"), 0o644))
	require.NoError(t, s.Symlink(ctx, "end", "/workspace/hop0"))
	for i := 1; i < 10; i++ {
		require.NoError(t, s.Symlink(ctx, fmt.Sprintf("hop%d", i-1), fmt.Sprintf("/workspace/hop%d", i)))
	}

	got, err := s.ReadFile(ctx, "/workspace/hop9")
	require.NoError(t, err)
	assert.Equal(t, []byte("found"), got)
}

func TestReadlinkOnRegularFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.WriteFile(ctx, "/workspace/f", []byte("x"), 0o644))
	_, err := s.Readlink(ctx, "/workspace/f")
	assert.Equal(t, vfserrors.ErrInvalidArgument, errCode(t, err))
}

// ============================================================================
// Cross-Mount Rules
// ============================================================================

func TestRenameAcrossMountsRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	s := newTestSession(t,
		"type=managed,src="+filepath.Join(t.TempDir(), "ws.db")+",dst=/workspace",
		"type=bind,src="+dir+",dst=/host",
	)

	require.NoError(t, s.WriteFile(ctx, "/workspace/f", []byte("x"), 0o644))
	err := s.Rename(ctx, "/workspace/f", "/host/f")
	assert.Equal(t, vfserrors.ErrInvalidArgument, errCode(t, err))
}

// ============================================================================
// Bind Mounts
// ============================================================================

func TestBindMountPassthrough(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "host.txt"), []byte("from host"), 0o644))

	s := newTestSession(t, "type=bind,src="+dir+",dst=/host")

	got, err := s.ReadFile(ctx, "/host/host.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("from host"), got)

	names, err := s.Readdir(ctx, "/host")
	require.NoError(t, err)
	assert.Equal(t, []string{"host.txt"}, names)

	require.NoError(t, s.WriteFile(ctx, "/host/new.txt", []byte("written"), 0o644))
	onDisk, err := os.ReadFile(filepath.Join(dir, "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("written"), onDisk)
}

func TestBindMountErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	s := newTestSession(t, "type=bind,src="+dir+",dst=/host")

	_, err := s.ReadFile(ctx, "/host/missing")
	assert.True(t, vfserrors.IsNotFoundError(err))

	require.NoError(t, s.Mkdir(ctx, "/host/d", 0o755))
	require.NoError(t, s.WriteFile(ctx, "/host/d/f", []byte("x"), 0o644))
	rmErr := s.Rmdir(ctx, "/host/d")
	require.Error(t, rmErr)
	assert.Equal(t, vfserrors.ErrNotEmpty, errCode(t, rmErr))
}

// ============================================================================
// Persistence
// ============================================================================

func TestManagedMountSurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "persist.db")
	spec := "type=managed,src=" + dbPath + ",dst=/workspace"

	first := newTestSession(t, spec)
	require.NoError(t, first.Mkdir(ctx, "/workspace/kept", 0o755))
	require.NoError(t, first.WriteFile(ctx, "/workspace/kept/f", []byte("durable"), 0o644))
	require.NoError(t, first.Close(ctx))

	second := newTestSession(t, spec)
	got, err := second.ReadFile(ctx, "/workspace/kept/f")
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), got)
}

func TestRenameIntoOwnSubtree(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.Mkdir(ctx, "/workspace/a", 0o755))
	require.NoError(t, s.Mkdir(ctx, "/workspace/a/b", 0o755))
	require.NoError(t, s.Mkdir(ctx, "/workspace/a/b/c", 0o755))

	// Directly below itself and deeper down both fail.
	err := s.Rename(ctx, "/workspace/a", "/workspace/a/x")
	require.Error(t, err)
	assert.Equal(t, vfserrors.ErrInvalidArgument, errCode(t, err))

	err = s.Rename(ctx, "/workspace/a", "/workspace/a/b/c")
	require.Error(t, err)
	assert.Equal(t, vfserrors.ErrInvalidArgument, errCode(t, err))

	// The tree is untouched and fully reachable.
	st, err := s.Stat(ctx, "/workspace/a/b/c")
	require.NoError(t, err)
	assert.True(t, st.IsDir())

	// Moving a directory sideways still works.
	require.NoError(t, s.Mkdir(ctx, "/workspace/dst", 0o755))
	require.NoError(t, s.Rename(ctx, "/workspace/a/b", "/workspace/dst/b"))
	_, err = s.Stat(ctx, "/workspace/dst/b/c")
	require.NoError(t, err)
}

func TestBindMkdirRequiresParent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	s := newTestSession(t, "type=bind,src="+dir+",dst=/host")

	err := s.Mkdir(ctx, "/host/missing/child", 0o755)
	require.Error(t, err)
	assert.Equal(t, vfserrors.ErrNotFound, errCode(t, err))

	// The missing intermediate must not have been materialized.
	_, statErr := os.Stat(filepath.Join(dir, "missing"))
	assert.True(t, os.IsNotExist(statErr))
}

// ============================================================================
// Open Reference Counting
// ============================================================================

func TestRetainInodeTracksLiveness(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSession(t)

	require.NoError(t, s.WriteFile(ctx, "/workspace/f", []byte("x"), 0o644))

	m, rel, err := s.mounts.Resolve("/workspace/f")
	require.NoError(t, err)

	var ino int64
	require.NoError(t, m.Store.View(ctx, func(tx *store.Tx) error {
		resolved, rerr := resolvePath(tx, rel, true)
		ino = resolved
		return rerr
	}))

	// A retained inode survives unlink.
	require.NoError(t, m.retainInode(ctx, ino))
	require.NoError(t, s.Unlink(ctx, "/workspace/f"))
	require.NoError(t, m.Store.View(ctx, func(tx *store.Tx) error {
		_, gerr := tx.GetInode(ino)
		return gerr
	}))

	// The last release deletes the orphan.
	require.NoError(t, m.releaseInode(ctx, ino))
	gone := m.Store.View(ctx, func(tx *store.Tx) error {
		_, gerr := tx.GetInode(ino)
		return gerr
	})
	require.Error(t, gone)
	assert.Equal(t, vfserrors.ErrNotFound, errCode(t, gone))

	// Retaining an inode that lost the race with deletion reports
	// NotFound instead of handing out a dead reference.
	err = m.retainInode(ctx, ino)
	require.Error(t, err)
	assert.Equal(t, vfserrors.ErrNotFound, errCode(t, err))
}
