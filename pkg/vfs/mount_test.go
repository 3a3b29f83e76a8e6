package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
)

// ============================================================================
// Mount Specification Parsing
// ============================================================================

func TestParseMountSpecManaged(t *testing.T) {
	t.Parallel()

	spec, err := ParseMountSpec("type=managed,src=/var/lib/agentfs/ws.db,dst=/workspace")
	require.NoError(t, err)
	assert.Equal(t, MountManaged, spec.Kind)
	assert.Equal(t, "/var/lib/agentfs/ws.db", spec.Src)
	assert.Equal(t, "/workspace", spec.Dst)
}

func TestParseMountSpecBindCanonicalizesSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	spec, err := ParseMountSpec("type=bind,src=" + dir + ",dst=/host")
	require.NoError(t, err)
	assert.Equal(t, MountBind, spec.Kind)
	assert.Equal(t, "/host", spec.Dst)
	// EvalSymlinks may rewrite the path (e.g. /tmp on a symlinked
	// tmpdir), so only require that it still exists as a prefix match.
	assert.NotEmpty(t, spec.Src)
}

func TestParseMountSpecAliases(t *testing.T) {
	t.Parallel()

	spec, err := ParseMountSpec("type=managed,source=/data/a.db,target=/a")
	require.NoError(t, err)
	assert.Equal(t, "/data/a.db", spec.Src)
	assert.Equal(t, "/a", spec.Dst)
}

func TestParseMountSpecCleansDestination(t *testing.T) {
	t.Parallel()

	spec, err := ParseMountSpec("type=managed,src=/data/a.db,dst=/a/b/../c/")
	require.NoError(t, err)
	assert.Equal(t, "/a/c", spec.Dst)
}

func TestParseMountSpecErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		errText string
	}{
		{
			name:    "not key=value",
			input:   "type=managed,src",
			errText: "expected key=value",
		},
		{
			name:    "duplicate key",
			input:   "type=managed,type=bind,src=/a,dst=/b",
			errText: "duplicate key",
		},
		{
			name:    "missing type",
			input:   "src=/a,dst=/b",
			errText: "missing required field 'type'",
		},
		{
			name:    "missing src",
			input:   "type=managed,dst=/b",
			errText: "requires 'src'",
		},
		{
			name:    "missing dst",
			input:   "type=managed,src=/a",
			errText: "requires 'dst'",
		},
		{
			name:    "relative dst",
			input:   "type=managed,src=/a,dst=b",
			errText: "must be absolute",
		},
		{
			name:    "unsupported type",
			input:   "type=overlay,src=/a,dst=/b",
			errText: "unsupported mount type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseMountSpec(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

// ============================================================================
// Mount Resolution
// ============================================================================

func newTestMountTable() *MountTable {
	return NewMountTable([]*Mount{
		{Prefix: "/workspace", Kind: MountManaged},
		{Prefix: "/workspace/deep", Kind: MountManaged},
		{Prefix: "/host", Kind: MountBind, HostRoot: "/srv/host"},
	})
}

func TestMountTableResolveLongestPrefixWins(t *testing.T) {
	t.Parallel()

	table := newTestMountTable()

	m, rel, err := table.Resolve("/workspace/deep/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "/workspace/deep", m.Prefix)
	assert.Equal(t, "file.txt", rel)

	m, rel, err = table.Resolve("/workspace/other/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "/workspace", m.Prefix)
	assert.Equal(t, "other/file.txt", rel)
}

func TestMountTableResolveExactPrefix(t *testing.T) {
	t.Parallel()

	table := newTestMountTable()
	m, rel, err := table.Resolve("/workspace")
	require.NoError(t, err)
	assert.Equal(t, "/workspace", m.Prefix)
	assert.Equal(t, "", rel, "mount root resolves to an empty relative path")
}

func TestMountTableResolveCleansPath(t *testing.T) {
	t.Parallel()

	table := newTestMountTable()
	m, rel, err := table.Resolve("/workspace/a/../b//c")
	require.NoError(t, err)
	assert.Equal(t, "/workspace", m.Prefix)
	assert.Equal(t, "b/c", rel)
}

func TestMountTableResolveOutsideAnyMount(t *testing.T) {
	t.Parallel()

	table := newTestMountTable()
	_, _, err := table.Resolve("/etc/passwd")
	require.Error(t, err)
	assert.True(t, vfserrors.IsNotFoundError(err), "no implicit host fallback")
}

func TestMountTableResolveRelativePath(t *testing.T) {
	t.Parallel()

	table := newTestMountTable()
	_, _, err := table.Resolve("relative/path")
	require.Error(t, err)

	var vfsErr *vfserrors.VFSError
	require.ErrorAs(t, err, &vfsErr)
	assert.Equal(t, vfserrors.ErrInvalidArgument, vfsErr.Code)
}

func TestMountTableResolveSiblingPrefixNotSwallowed(t *testing.T) {
	t.Parallel()

	table := newTestMountTable()

	// /workspace2 shares a string prefix with /workspace but is a
	// different directory and must not match.
	_, _, err := table.Resolve("/workspace2/file")
	require.Error(t, err)
	assert.True(t, vfserrors.IsNotFoundError(err))
}

func TestMountTableRootPrefix(t *testing.T) {
	t.Parallel()

	table := NewMountTable([]*Mount{
		{Prefix: "/", Kind: MountManaged},
		{Prefix: "/host", Kind: MountBind, HostRoot: "/srv/host"},
	})

	m, rel, err := table.Resolve("/anything/else")
	require.NoError(t, err)
	assert.Equal(t, "/", m.Prefix)
	assert.Equal(t, "anything/else", rel)

	m, _, err = table.Resolve("/host/x")
	require.NoError(t, err)
	assert.Equal(t, "/host", m.Prefix, "deeper prefix still wins over root")
}
