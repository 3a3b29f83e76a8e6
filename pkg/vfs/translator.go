package vfs

import (
	"context"
	"time"

	"golang.org/x/sys/unix"

	"github.com/agentfs/agentfs/internal/logger"
	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
)

// ============================================================================
// Syscall Translator
// ============================================================================
//
// The translator is the single entry point the interception substrate talks
// to. It receives operation-intent events and returns POSIX-shaped results,
// so the substrate never needs to know whether a path landed on a managed
// store or a bind mount.

// OpKind names one intercepted filesystem operation.
type OpKind string

const (
	OpOpen     OpKind = "open"
	OpClose    OpKind = "close"
	OpRead     OpKind = "read"
	OpWrite    OpKind = "write"
	OpLseek    OpKind = "lseek"
	OpDup      OpKind = "dup"
	OpDup2     OpKind = "dup2"
	OpStat     OpKind = "stat"
	OpLstat    OpKind = "lstat"
	OpFstat    OpKind = "fstat"
	OpMkdir    OpKind = "mkdir"
	OpRmdir    OpKind = "rmdir"
	OpUnlink   OpKind = "unlink"
	OpRename   OpKind = "rename"
	OpLink     OpKind = "link"
	OpSymlink  OpKind = "symlink"
	OpReadlink OpKind = "readlink"
	OpReaddir  OpKind = "readdir"
	OpGetdents OpKind = "getdents"
	OpTruncate OpKind = "truncate"
)

// Op is one operation-intent event delivered by the substrate. Only the
// fields relevant to Kind are consulted.
type Op struct {
	Kind OpKind

	// Path is the primary sandbox-absolute path operand.
	Path string
	// NewPath is the destination operand for rename and link.
	NewPath string
	// Target is the link content for symlink.
	Target string

	// FD is the descriptor operand; NewFD is the dup2 destination.
	FD    int
	NewFD int

	Flags  OpenFlags
	Mode   uint32
	Offset int64
	Whence int
	Length int64
	Size   int64
	Data   []byte
}

// Result carries the success payload of a dispatched operation. Only the
// fields relevant to the operation are populated.
type Result struct {
	FD      int
	Stat    *Stat
	Data    []byte
	Written int
	Offset  int64
	Target  string
	Entries []string
}

// Dispatch executes one operation-intent event and returns its result and
// errno. A zero errno means success. Every domain error is flattened to the
// errno an unmodified program expects from the kernel.
func (s *Session) Dispatch(ctx context.Context, op Op) (*Result, unix.Errno) {
	start := time.Now()

	result, err := s.dispatch(ctx, op)
	errno := vfserrors.ErrnoOf(err)

	if s.metrics != nil {
		errLabel := ""
		if errno != 0 {
			errLabel = unix.ErrnoName(errno)
		}
		s.metrics.RecordOperation(string(op.Kind), s.mountLabel(op), time.Since(start), errLabel)
		switch op.Kind {
		case OpOpen, OpClose, OpDup, OpDup2:
			s.metrics.SetOpenDescriptors(s.fds.Len())
		}
	}

	if s.trace {
		fields := []any{
			logger.Op(string(op.Kind)),
			logger.Mount(s.mountLabel(op)),
			logger.DurationMs(logger.Duration(start)),
		}
		if logger.FromContext(ctx) == nil {
			// Routed dispatches carry session and pid in the context;
			// direct sessions tag themselves.
			fields = append(fields, logger.SessionID(s.id))
		}
		if op.Path != "" {
			fields = append(fields, logger.Path(op.Path))
		}
		if op.NewPath != "" {
			fields = append(fields, logger.NewPath(op.NewPath))
		}
		if isFDOp(op.Kind) {
			fields = append(fields, logger.FD(op.FD))
		}
		if err != nil {
			fields = append(fields, logger.Errno(unix.ErrnoName(errno)), logger.Err(err))
			logger.DebugCtx(ctx, "op failed", fields...)
		} else {
			fields = append(fields, resultFields(op, result)...)
			logger.DebugCtx(ctx, "op ok", fields...)
		}
	}

	if err != nil {
		return nil, errno
	}
	return result, 0
}

func (s *Session) dispatch(ctx context.Context, op Op) (*Result, error) {
	switch op.Kind {
	case OpOpen:
		fd, err := s.Open(ctx, op.Path, op.Flags, op.Mode)
		if err != nil {
			return nil, err
		}
		return &Result{FD: fd}, nil

	case OpClose:
		return &Result{}, s.CloseFD(ctx, op.FD)

	case OpRead:
		data, err := s.Read(ctx, op.FD, op.Length)
		if err != nil {
			return nil, err
		}
		s.recordBytes(op, "read", len(data))
		return &Result{Data: data}, nil

	case OpWrite:
		n, err := s.Write(ctx, op.FD, op.Data)
		if err != nil {
			return nil, err
		}
		s.recordBytes(op, "write", n)
		return &Result{Written: n}, nil

	case OpLseek:
		offset, err := s.Lseek(ctx, op.FD, op.Offset, op.Whence)
		if err != nil {
			return nil, err
		}
		return &Result{Offset: offset}, nil

	case OpDup:
		fd, err := s.Dup(ctx, op.FD)
		if err != nil {
			return nil, err
		}
		return &Result{FD: fd}, nil

	case OpDup2:
		fd, err := s.Dup2(ctx, op.FD, op.NewFD)
		if err != nil {
			return nil, err
		}
		return &Result{FD: fd}, nil

	case OpStat:
		st, err := s.Stat(ctx, op.Path)
		if err != nil {
			return nil, err
		}
		return &Result{Stat: st}, nil

	case OpLstat:
		st, err := s.Lstat(ctx, op.Path)
		if err != nil {
			return nil, err
		}
		return &Result{Stat: st}, nil

	case OpFstat:
		st, err := s.Fstat(ctx, op.FD)
		if err != nil {
			return nil, err
		}
		return &Result{Stat: st}, nil

	case OpMkdir:
		return &Result{}, s.Mkdir(ctx, op.Path, op.Mode)

	case OpRmdir:
		return &Result{}, s.Rmdir(ctx, op.Path)

	case OpUnlink:
		return &Result{}, s.Unlink(ctx, op.Path)

	case OpRename:
		return &Result{}, s.Rename(ctx, op.Path, op.NewPath)

	case OpLink:
		return &Result{}, s.Link(ctx, op.Path, op.NewPath)

	case OpSymlink:
		return &Result{}, s.Symlink(ctx, op.Target, op.Path)

	case OpReadlink:
		target, err := s.Readlink(ctx, op.Path)
		if err != nil {
			return nil, err
		}
		return &Result{Target: target}, nil

	case OpReaddir:
		entries, err := s.Readdir(ctx, op.Path)
		if err != nil {
			return nil, err
		}
		return &Result{Entries: entries}, nil

	case OpGetdents:
		// getdents differs from readdir only in surface: the kernel call
		// reports the self and parent entries, so they are prepended here.
		entries, err := s.Readdir(ctx, op.Path)
		if err != nil {
			return nil, err
		}
		withDots := make([]string, 0, len(entries)+2)
		withDots = append(withDots, ".", "..")
		withDots = append(withDots, entries...)
		return &Result{Entries: withDots}, nil

	case OpTruncate:
		return &Result{}, s.Truncate(ctx, op.Path, op.Size)

	default:
		return nil, vfserrors.NewInvalidArgumentError("unknown operation " + string(op.Kind))
	}
}

// mountLabel resolves the mount prefix for metrics labels without failing
// the operation. Descriptor operations carry no path and label as "fd".
func (s *Session) mountLabel(op Op) string {
	if op.Path == "" {
		return "fd"
	}
	m, _, err := s.mounts.Resolve(op.Path)
	if err != nil {
		return "none"
	}
	return m.Prefix
}

func (s *Session) recordBytes(op Op, direction string, bytes int) {
	if s.metrics == nil || bytes == 0 {
		return
	}
	s.metrics.RecordBytesTransferred(s.mountLabel(op), direction, bytes)
}

func isFDOp(kind OpKind) bool {
	switch kind {
	case OpClose, OpRead, OpWrite, OpLseek, OpDup, OpDup2, OpFstat:
		return true
	}
	return false
}

// resultFields picks the success payload attributes worth tracing per
// operation kind.
func resultFields(op Op, result *Result) []any {
	switch op.Kind {
	case OpOpen:
		return []any{logger.FD(result.FD), logger.Mode(op.Mode)}
	case OpRead:
		return []any{logger.Length(op.Length), logger.BytesRead(len(result.Data))}
	case OpWrite:
		return []any{logger.BytesWritten(result.Written)}
	case OpLseek:
		return []any{logger.Offset(result.Offset)}
	case OpDup, OpDup2:
		return []any{logger.NewFD(result.FD)}
	case OpStat, OpLstat, OpFstat:
		return []any{logger.Ino(result.Stat.Ino), logger.Size(result.Stat.Size)}
	case OpReaddir, OpGetdents:
		return []any{logger.Entries(len(result.Entries))}
	case OpReadlink:
		return []any{logger.LinkTarget(result.Target)}
	}
	return nil
}
