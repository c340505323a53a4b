package codec

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrTruncatedTransaction = errors.New("truncated transaction")
	ErrCorruptTransaction   = errors.New("corrupt transaction")
	ErrMessageTooLarge      = errors.New("message too large")
)

// TruncatedError reports a source that ended before a transaction was complete.
// Consumed is the number of bytes read before the source ran out.
type TruncatedError struct {
	Consumed int64
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("%s after %d bytes", ErrTruncatedTransaction, e.Consumed)
}

func (e *TruncatedError) Is(target error) bool {
	return target == ErrTruncatedTransaction
}

// CorruptError reports a fully present transaction whose checksum does not match.
type CorruptError struct {
	Stored   uint64
	Computed uint64
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("%s: checksum mismatch: %d != %d", ErrCorruptTransaction, e.Stored, e.Computed)
}

func (e *CorruptError) Is(target error) bool {
	return target == ErrCorruptTransaction
}
