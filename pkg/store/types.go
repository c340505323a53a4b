package store

import (
	"log/slog"
	"time"
)

// DefaultReadBufferSize is the replay read buffer used when LogConfig leaves it unset.
const DefaultReadBufferSize = 64 * 1024

// LogConfig holds configuration for a message log
type LogConfig struct {
	FilePath       string       // Path to the log file; created if missing
	AutoSync       bool         // Fsync after every append
	ReadBufferSize int          // Replay read buffer size (0 = DefaultReadBufferSize)
	Logger         *slog.Logger // Defaults to slog.Default()
}

// Handler receives each replayed message in log order. The slice is owned by the
// handler. Returning an error aborts the replay.
type Handler func(message []byte) error

// ReplayResult describes one full scan of the log
type ReplayResult struct {
	Transactions   int64         `json:"transactions"`
	Messages       int64         `json:"messages"`
	FileSize       int64         `json:"file_size"`       // Physical size when the scan started
	ValidLength    int64         `json:"valid_length"`    // End of the last complete transaction
	BytesDiscarded int64         `json:"bytes_discarded"` // Partial trailing write ignored by the scan
	Duration       time.Duration `json:"duration"`
}

// Errors
var (
	ErrLockUnavailable = &LogError{"log file is locked by another instance"}
	ErrCorruptLog      = &LogError{"log is corrupt"}
	ErrLogClosed       = &LogError{"log has been closed"}
	ErrWriterClosed    = &LogError{"message writer has been closed"}
)

// LogError represents a message log error
type LogError struct {
	Message string
}

func (e *LogError) Error() string {
	return e.Message
}
