package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so traces from the
// translator, the stores, and the CLI can be aggregated and queried together.
const (
	// ========================================================================
	// Session & Process
	// ========================================================================
	KeySessionID = "session_id" // Filesystem session identifier
	KeyPID       = "pid"        // Sandboxed process ID the operation came from

	// ========================================================================
	// Operation
	// ========================================================================
	KeyOp    = "op"    // Operation name: open, read, rename, etc.
	KeyMount = "mount" // Mount prefix the path resolved to

	// ========================================================================
	// File System Operands
	// ========================================================================
	KeyPath       = "path"        // Sandbox-absolute path operand
	KeyNewPath    = "new_path"    // Destination path for rename/link
	KeyLinkTarget = "link_target" // Symbolic link target
	KeyIno        = "ino"         // Inode number
	KeyMode       = "mode"        // File mode bits
	KeySize       = "size"        // File size in bytes
	KeyEntries    = "entries"     // Number of directory entries

	// ========================================================================
	// Descriptors & I/O
	// ========================================================================
	KeyFD           = "fd"            // Virtual file descriptor
	KeyNewFD        = "new_fd"        // dup2 destination descriptor
	KeyOffset       = "offset"        // Cursor position or write offset
	KeyLength       = "length"        // Byte count requested
	KeyBytesRead    = "bytes_read"    // Actual bytes read
	KeyBytesWritten = "bytes_written" // Actual bytes written

	// ========================================================================
	// Record Store
	// ========================================================================
	KeyDBPath  = "db_path" // SQLite database file path
	KeyAttempt = "attempt" // Busy retry attempt number
	KeyKey     = "key"     // Key-value store key
	KeyTool    = "tool"    // Tool name in the audit log

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrno      = "errno"       // POSIX errno name returned to the substrate
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// SessionID returns a slog.Attr for the session identifier
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// PID returns a slog.Attr for the sandboxed process ID
func PID(pid int) slog.Attr {
	return slog.Int(KeyPID, pid)
}

// Op returns a slog.Attr for the operation name
func Op(name string) slog.Attr {
	return slog.String(KeyOp, name)
}

// Mount returns a slog.Attr for the resolved mount prefix
func Mount(prefix string) slog.Attr {
	return slog.String(KeyMount, prefix)
}

// Path returns a slog.Attr for the primary path operand
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// NewPath returns a slog.Attr for the destination path operand
func NewPath(p string) slog.Attr {
	return slog.String(KeyNewPath, p)
}

// LinkTarget returns a slog.Attr for a symlink target
func LinkTarget(t string) slog.Attr {
	return slog.String(KeyLinkTarget, t)
}

// Ino returns a slog.Attr for an inode number
func Ino(ino int64) slog.Attr {
	return slog.Int64(KeyIno, ino)
}

// Mode returns a slog.Attr for file mode bits (octal)
func Mode(m uint32) slog.Attr {
	return slog.Any(KeyMode, m)
}

// Size returns a slog.Attr for a file size
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// Entries returns a slog.Attr for a directory entry count
func Entries(n int) slog.Attr {
	return slog.Int(KeyEntries, n)
}

// FD returns a slog.Attr for a virtual descriptor
func FD(fd int) slog.Attr {
	return slog.Int(KeyFD, fd)
}

// NewFD returns a slog.Attr for a duplicated descriptor
func NewFD(fd int) slog.Attr {
	return slog.Int(KeyNewFD, fd)
}

// Offset returns a slog.Attr for a cursor or write offset
func Offset(off int64) slog.Attr {
	return slog.Int64(KeyOffset, off)
}

// Length returns a slog.Attr for a requested byte count
func Length(n int64) slog.Attr {
	return slog.Int64(KeyLength, n)
}

// BytesRead returns a slog.Attr for actual bytes read
func BytesRead(n int) slog.Attr {
	return slog.Int(KeyBytesRead, n)
}

// BytesWritten returns a slog.Attr for actual bytes written
func BytesWritten(n int) slog.Attr {
	return slog.Int(KeyBytesWritten, n)
}

// DBPath returns a slog.Attr for a SQLite database path
func DBPath(p string) slog.Attr {
	return slog.String(KeyDBPath, p)
}

// Attempt returns a slog.Attr for a busy retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// Key returns a slog.Attr for a key-value store key
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// Tool returns a slog.Attr for an audited tool name
func Tool(name string) slog.Attr {
	return slog.String(KeyTool, name)
}

// DurationMs returns a slog.Attr for operation duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error message. A nil error yields an
// empty attr that slog drops from the output.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Errno returns a slog.Attr for the errno name returned to the substrate
func Errno(name string) slog.Attr {
	return slog.String(KeyErrno, name)
}
