package vfs

import (
	"path"
	"strings"

	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
	"github.com/agentfs/agentfs/pkg/vfs/store"
)

// The path resolver walks slash-separated, mount-relative paths through the
// namespace index, starting at the fixed root inode. Symlink components are
// chased inline with a bounded indirection counter; absolute targets restart
// from the mount root.

// splitPath normalizes a mount-relative path into its components.
// Empty and "." components are dropped; ".." is kept for the walk to pop.
func splitPath(rel string) []string {
	parts := strings.Split(rel, "/")
	comps := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		comps = append(comps, p)
	}
	return comps
}

// resolvePath walks rel from the root inode and returns the target inode
// number. When followFinal is false a symlink in the final position is
// returned itself rather than chased (lstat, unlink, readlink semantics).
func resolvePath(tx *store.Tx, rel string, followFinal bool) (int64, error) {
	comps := splitPath(rel)

	// Stack of directory inodes walked so far; ".." pops.
	stack := []int64{store.RootIno}
	depth := 0

	for i := 0; i < len(comps); i++ {
		name := comps[i]
		cur := stack[len(stack)-1]

		if name == ".." {
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			continue
		}

		ino, err := tx.Lookup(cur, name)
		if err != nil {
			return 0, err
		}
		inode, err := tx.GetInode(ino)
		if err != nil {
			return 0, err
		}

		final := i == len(comps)-1
		if inode.IsSymlink() && (!final || followFinal) {
			depth++
			if depth > MaxSymlinkDepth {
				return 0, vfserrors.NewTooManyLinksError(rel)
			}
			target, err := tx.GetSymlink(ino)
			if err != nil {
				return 0, err
			}
			// The target's components replace this component; an
			// absolute target restarts from the mount root.
			rest := comps[i+1:]
			comps = append(splitPath(target), rest...)
			i = -1
			if path.IsAbs(target) {
				stack = []int64{store.RootIno}
			}
			continue
		}

		if !final && !inode.IsDir() {
			return 0, vfserrors.NewNotDirectoryError(rel)
		}
		stack = append(stack, ino)
	}

	return stack[len(stack)-1], nil
}

// resolveParent resolves the parent directory of rel and returns its inode
// number together with the final path component.
//
// With createMissing, intermediate directories that do not exist are
// materialized (mode 0755) inside the same transaction; this serves bulk
// "write this path" operations. Strict resolution, used by open without
// create, fails NotFound on a missing parent.
func resolveParent(tx *store.Tx, rel string, createMissing bool) (int64, string, error) {
	comps := splitPath(rel)
	if len(comps) == 0 {
		return 0, "", vfserrors.NewInvalidArgumentError("path has no final component")
	}

	basename := comps[len(comps)-1]
	if basename == ".." {
		return 0, "", vfserrors.NewInvalidArgumentError("path ends in '..'")
	}
	parentComps := comps[:len(comps)-1]

	stack := []int64{store.RootIno}
	depth := 0

	for i := 0; i < len(parentComps); i++ {
		name := parentComps[i]
		cur := stack[len(stack)-1]

		if name == ".." {
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			continue
		}

		ino, err := tx.Lookup(cur, name)
		if vfserrors.IsNotFoundError(err) && createMissing {
			dir, cerr := tx.CreateInode(store.ModeDir|0o755, 0, 0)
			if cerr != nil {
				return 0, "", cerr
			}
			if cerr := tx.InsertDentry(cur, name, dir.Ino); cerr != nil {
				return 0, "", cerr
			}
			stack = append(stack, dir.Ino)
			continue
		}
		if err != nil {
			return 0, "", err
		}

		inode, err := tx.GetInode(ino)
		if err != nil {
			return 0, "", err
		}
		if inode.IsSymlink() {
			depth++
			if depth > MaxSymlinkDepth {
				return 0, "", vfserrors.NewTooManyLinksError(rel)
			}
			target, err := tx.GetSymlink(ino)
			if err != nil {
				return 0, "", err
			}
			rest := parentComps[i+1:]
			parentComps = append(splitPath(target), rest...)
			i = -1
			if path.IsAbs(target) {
				stack = []int64{store.RootIno}
			}
			continue
		}
		if !inode.IsDir() {
			return 0, "", vfserrors.NewNotDirectoryError(rel)
		}
		stack = append(stack, ino)
	}

	return stack[len(stack)-1], basename, nil
}
