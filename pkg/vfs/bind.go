package vfs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
	"github.com/agentfs/agentfs/pkg/vfs/store"
	"golang.org/x/sys/unix"
)

// ============================================================================
// Bind Mount Passthrough
// ============================================================================
//
// Bind mounts delegate straight to the host filesystem. Every helper here
// converts host errors into the engine's error taxonomy so callers see one
// vocabulary regardless of mount kind.

// hostErr maps a host filesystem error onto the engine's taxonomy.
func hostErr(err error) error {
	if err == nil {
		return nil
	}
	path := ""
	var perr *fs.PathError
	if errors.As(err, &perr) {
		path = perr.Path
	}
	switch {
	case os.IsNotExist(err):
		return vfserrors.NewNotFoundError(path)
	case os.IsExist(err):
		return vfserrors.NewAlreadyExistsError(path)
	}
	switch errnoOf(err) {
	case unix.ENOTDIR:
		return vfserrors.NewNotDirectoryError(path)
	case unix.EISDIR:
		return vfserrors.NewIsDirectoryError(path)
	case unix.ENOTEMPTY:
		return vfserrors.NewNotEmptyError(path)
	case unix.ELOOP:
		return vfserrors.NewTooManyLinksError(path)
	case unix.EINVAL:
		return vfserrors.NewInvalidArgumentError(err.Error())
	}
	return vfserrors.NewCorruptionError("host filesystem: " + err.Error())
}

func errnoOf(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}

func hostStat(hostPath string, follow bool) (*Stat, error) {
	var st unix.Stat_t
	var err error
	if follow {
		err = unix.Stat(hostPath, &st)
	} else {
		err = unix.Lstat(hostPath, &st)
	}
	if err != nil {
		return nil, hostErr(&fs.PathError{Op: "stat", Path: hostPath, Err: err})
	}
	return &Stat{
		Ino:     int64(st.Ino),
		Mode:    st.Mode,
		Nlink:   int64(st.Nlink),
		UID:     st.Uid,
		GID:     st.Gid,
		Size:    st.Size,
		Blksize: Blksize,
		Blocks:  (st.Size + 511) / 512,
		Atime:   time.Unix(st.Atim.Sec, st.Atim.Nsec),
		Mtime:   time.Unix(st.Mtim.Sec, st.Mtim.Nsec),
		Ctime:   time.Unix(st.Ctim.Sec, st.Ctim.Nsec),
	}, nil
}

// hostStatFromInfo builds a Stat from a FileInfo obtained on an open file.
func hostStatFromInfo(info fs.FileInfo) *Stat {
	result := &Stat{
		Mode:    uint32(info.Mode().Perm()),
		Nlink:   1,
		Size:    info.Size(),
		Blksize: Blksize,
		Blocks:  (info.Size() + 511) / 512,
		Mtime:   info.ModTime(),
	}
	if info.IsDir() {
		result.Mode |= store.ModeDir
	} else {
		result.Mode |= store.ModeRegular
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		result.Ino = int64(st.Ino)
		result.Mode = st.Mode
		result.Nlink = int64(st.Nlink)
		result.UID = st.Uid
		result.GID = st.Gid
		result.Atime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
		result.Ctime = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	}
	return result
}

func hostReaddir(hostPath string) ([]string, error) {
	entries, err := os.ReadDir(hostPath)
	if err != nil {
		return nil, hostErr(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func hostMkdir(hostPath string, mode uint32) error {
	return hostErr(os.Mkdir(hostPath, os.FileMode(mode&0o7777)))
}

func hostSymlink(target, hostPath string) error {
	return hostErr(os.Symlink(target, hostPath))
}

func hostReadlink(hostPath string) (string, error) {
	target, err := os.Readlink(hostPath)
	if err != nil {
		if errnoOf(err) == unix.EINVAL {
			return "", vfserrors.NewInvalidArgumentError("not a symlink")
		}
		return "", hostErr(err)
	}
	return target, nil
}

func hostLink(oldPath, newPath string) error {
	info, err := os.Lstat(oldPath)
	if err != nil {
		return hostErr(err)
	}
	if info.IsDir() {
		return vfserrors.NewIsDirectoryError(oldPath)
	}
	return hostErr(os.Link(oldPath, newPath))
}

func hostUnlink(hostPath string) error {
	info, err := os.Lstat(hostPath)
	if err != nil {
		return hostErr(err)
	}
	if info.IsDir() {
		return vfserrors.NewIsDirectoryError(hostPath)
	}
	return hostErr(os.Remove(hostPath))
}

func hostRmdir(hostPath string) error {
	info, err := os.Lstat(hostPath)
	if err != nil {
		return hostErr(err)
	}
	if !info.IsDir() {
		return vfserrors.NewNotDirectoryError(hostPath)
	}
	return hostErr(os.Remove(hostPath))
}

func hostRename(oldPath, newPath string) error {
	return hostErr(os.Rename(oldPath, newPath))
}

func hostTruncate(hostPath string, size int64) error {
	return hostErr(os.Truncate(hostPath, size))
}

func hostWriteFile(hostPath string, data []byte, mode uint32) error {
	if err := os.MkdirAll(filepath.Dir(hostPath), 0o755); err != nil {
		return hostErr(err)
	}
	return hostErr(os.WriteFile(hostPath, data, os.FileMode(mode&0o7777)))
}

func hostReadFile(hostPath string) ([]byte, error) {
	data, err := os.ReadFile(hostPath)
	if err != nil {
		return nil, hostErr(err)
	}
	return data, nil
}

// hostOpen maps engine open flags onto the host open(2) flag word.
func hostOpen(hostPath string, flags OpenFlags, mode uint32) (*os.File, error) {
	osFlags := 0
	switch {
	case flags.Has(OpenRead) && flags.Has(OpenWrite):
		osFlags = os.O_RDWR
	case flags.Has(OpenWrite):
		osFlags = os.O_WRONLY
	default:
		osFlags = os.O_RDONLY
	}
	if flags.Has(OpenCreate) {
		osFlags |= os.O_CREATE
	}
	if flags.Has(OpenExclusive) {
		osFlags |= os.O_EXCL
	}
	if flags.Has(OpenTruncate) {
		osFlags |= os.O_TRUNC
	}
	f, err := os.OpenFile(hostPath, osFlags, os.FileMode(mode&0o7777))
	if err != nil {
		return nil, hostErr(err)
	}
	return f, nil
}
