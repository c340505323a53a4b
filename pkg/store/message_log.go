package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/martylamb/messagelog/pkg/codec"
)

// MessageLog is an append-only log of opaque messages backed by a single locked file.
// Messages appended together form one transaction that replays all-or-nothing.
type MessageLog struct {
	config     LogConfig
	file       *os.File
	lock       *fileLock
	codec      *codec.TransactionCodec
	logger     *slog.Logger
	mutex      sync.Mutex
	autoSync   bool
	offset     int64 // End of the last complete transaction; appends start here
	staleTail  bool  // Bytes past offset are leftovers of an interrupted write
	closed     bool
	lastReplay ReplayResult
}

// Open opens or creates the log file, takes an exclusive lock on it and replays it.
// Replay always runs, even with a nil handler, because it finds the offset the next
// append must be written at.
func Open(config LogConfig, handler Handler) (*MessageLog, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("log file path is required")
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = DefaultReadBufferSize
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}

	lock, err := lockFile(file)
	if err != nil {
		file.Close()
		return nil, err
	}

	l := &MessageLog{
		config:   config,
		file:     file,
		lock:     lock,
		codec:    codec.NewTransactionCodec(),
		logger:   logger.With("log", config.FilePath),
		autoSync: config.AutoSync,
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, err := l.replay(handler); err != nil {
		if releaseErr := l.release(); releaseErr != nil {
			l.logger.Warn("release after failed open", "error", releaseErr)
		}
		return nil, err
	}

	l.logger.Debug("message log opened", "valid_length", l.offset, "transactions", l.lastReplay.Transactions)
	return l, nil
}

// Replay scans the whole log from the beginning and hands every message to handler,
// transaction by transaction. A nil handler still performs the scan.
//
// A partial trailing transaction is the expected remains of an interrupted write: the
// scan stops there and the next append goes where that transaction started. A complete
// transaction with a bad checksum is not; replay fails with ErrCorruptLog and nothing
// from that transaction reaches the handler.
func (l *MessageLog) Replay(handler Handler) (*ReplayResult, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.closed {
		return nil, ErrLogClosed
	}
	return l.replay(handler)
}

// replay performs the scan (internal method, caller holds the mutex)
func (l *MessageLog) replay(handler Handler) (*ReplayResult, error) {
	start := time.Now()

	stat, err := l.file.Stat()
	if err != nil {
		return nil, err
	}

	result := ReplayResult{FileSize: stat.Size()}
	reader := newLogReader(l.file, stat.Size(), l.config.ReadBufferSize)

	for reader.More() {
		txOffset := reader.Offset()

		tx, err := reader.ReadNext()
		if err != nil {
			if errors.Is(err, codec.ErrTruncatedTransaction) {
				result.BytesDiscarded = stat.Size() - txOffset
				l.logger.Info("ignoring truncated transaction at end of log",
					"offset", txOffset, "bytes", result.BytesDiscarded)
				break
			}
			if errors.Is(err, codec.ErrCorruptTransaction) {
				l.logger.Error("corrupt transaction", "offset", txOffset, "error", err)
				return nil, fmt.Errorf("%w: transaction at offset %d: %w", ErrCorruptLog, txOffset, err)
			}
			return nil, fmt.Errorf("replay at offset %d: %w", txOffset, err)
		}

		result.Transactions++
		for _, msg := range tx.Messages {
			if handler != nil {
				if err := handler(msg); err != nil {
					return nil, fmt.Errorf("replay handler at offset %d: %w", txOffset, err)
				}
			}
			result.Messages++
		}
	}

	l.offset = reader.Offset()
	l.staleTail = l.offset < stat.Size()

	result.ValidLength = l.offset
	result.Duration = time.Since(start)
	l.lastReplay = result

	return &result, nil
}

// Append writes messages as a single transaction at the end of the log. Appending no
// messages does nothing. With auto-sync enabled the data is fsynced before Append
// returns.
func (l *MessageLog) Append(messages ...[]byte) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.closed {
		return ErrLogClosed
	}
	if len(messages) == 0 {
		return nil
	}

	data, err := l.codec.Encode(messages...)
	if err != nil {
		return err
	}

	// Drop what an interrupted write left behind so it cannot trail the new transaction.
	if l.staleTail {
		if err := l.file.Truncate(l.offset); err != nil {
			return fmt.Errorf("discard partial transaction: %w", err)
		}
		l.staleTail = false
	}

	n, err := l.file.WriteAt(data, l.offset)
	if err != nil {
		if n > 0 {
			l.staleTail = true
		}
		return fmt.Errorf("append transaction: %w", err)
	}
	l.offset += int64(n)

	if l.autoSync {
		return l.sync()
	}
	return nil
}

// Sync forces a fsync to disk
func (l *MessageLog) Sync() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.closed {
		return ErrLogClosed
	}
	return l.sync()
}

// sync performs the actual fsync operation (internal method)
func (l *MessageLog) sync() error {
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

// Close syncs the log, releases the lock and closes the file. Every later call,
// including Close, fails with ErrLogClosed.
func (l *MessageLog) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.closed {
		return ErrLogClosed
	}

	syncErr := l.sync()
	releaseErr := l.release()
	l.logger.Debug("message log closed", "valid_length", l.offset)

	if syncErr != nil {
		return syncErr
	}
	return releaseErr
}

// release unlocks and closes the file; the log is closed afterwards whatever happens.
func (l *MessageLog) release() error {
	l.closed = true

	unlockErr := l.lock.release()
	closeErr := l.file.Close()
	if unlockErr != nil {
		return fmt.Errorf("unlock: %w", unlockErr)
	}
	return closeErr
}

// SetAutoSync turns fsync-after-every-append on or off
func (l *MessageLog) SetAutoSync(autoSync bool) *MessageLog {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.autoSync = autoSync
	return l
}

// AutoSync reports whether every append is fsynced
func (l *MessageLog) AutoSync() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.autoSync
}

// Size returns the length of the valid part of the log
func (l *MessageLog) Size() (int64, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.closed {
		return 0, ErrLogClosed
	}
	return l.offset, nil
}

// LastReplay returns the result of the most recent successful scan
func (l *MessageLog) LastReplay() ReplayResult {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.lastReplay
}

// Path returns the file path
func (l *MessageLog) Path() string {
	return l.config.FilePath
}
