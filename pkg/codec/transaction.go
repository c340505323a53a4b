package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

const (
	checksumSize = 8
	countSize    = 4
	lengthSize   = 4

	// HeaderSize is the fixed prefix of every transaction: checksum plus message count.
	HeaderSize = checksumSize + countSize
)

// Transaction is an ordered group of messages written and replayed as one unit.
type Transaction struct {
	Checksum uint64   // CRC32 (IEEE) of the concatenated message bytes, high bytes zero
	Messages [][]byte // Message payloads in append order
}

// TransactionCodec handles serialization and deserialization of transactions
type TransactionCodec struct{}

// NewTransactionCodec creates a new transaction codec instance
func NewTransactionCodec() *TransactionCodec {
	return &TransactionCodec{}
}

// NewTransaction copies the given messages into a new transaction and computes its checksum.
func NewTransaction(messages ...[]byte) *Transaction {
	t := &Transaction{Messages: make([][]byte, len(messages))}
	for i, msg := range messages {
		t.Messages[i] = append([]byte{}, msg...)
	}
	t.Checksum = Checksum(t.Messages)
	return t
}

// Checksum computes the transaction checksum over the message contents only.
// Count and length fields are not covered.
func Checksum(messages [][]byte) uint64 {
	crc := crc32.NewIEEE()
	for _, msg := range messages {
		crc.Write(msg) // hash.Hash never returns an error
	}
	return uint64(crc.Sum32())
}

// Encode serializes messages into a single transaction block.
// Format: [Checksum(8)][Count(4)] then Count x [Length(4)][Data], big-endian.
func (c *TransactionCodec) Encode(messages ...[]byte) ([]byte, error) {
	if len(messages) > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d messages", ErrMessageTooLarge, len(messages))
	}

	size := HeaderSize
	for _, msg := range messages {
		if len(msg) > math.MaxInt32 {
			return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(msg))
		}
		size += lengthSize + len(msg)
	}

	buf := make([]byte, size)
	binary.BigEndian.PutUint64(buf[0:], Checksum(messages))
	binary.BigEndian.PutUint32(buf[checksumSize:], uint32(len(messages)))

	pos := HeaderSize
	for _, msg := range messages {
		binary.BigEndian.PutUint32(buf[pos:], uint32(len(msg)))
		pos += lengthSize
		pos += copy(buf[pos:], msg)
	}

	return buf, nil
}

// WriteTo serializes the transaction to w and returns the number of bytes written.
func (c *TransactionCodec) WriteTo(w io.Writer, t *Transaction) (int64, error) {
	data, err := c.Encode(t.Messages...)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Decode reads one transaction from r. It returns the transaction and the number of
// bytes consumed. A source that ends before the declared layout is complete yields a
// *TruncatedError; a complete transaction whose checksum does not match yields a
// *CorruptError.
func (c *TransactionCodec) Decode(r io.Reader) (*Transaction, int64, error) {
	var consumed int64
	var header [HeaderSize]byte

	n, err := io.ReadFull(r, header[:])
	consumed += int64(n)
	if err != nil {
		return nil, consumed, readError(consumed, err)
	}

	t := &Transaction{Checksum: binary.BigEndian.Uint64(header[0:])}
	count := int32(binary.BigEndian.Uint32(header[checksumSize:]))
	if count < 0 {
		return nil, consumed, fmt.Errorf("%w: negative message count %d", ErrCorruptTransaction, count)
	}

	// Cap the preallocation; count comes from disk and may be garbage.
	t.Messages = make([][]byte, 0, min(int(count), 64))

	var lenBuf [lengthSize]byte
	for i := int32(0); i < count; i++ {
		n, err := io.ReadFull(r, lenBuf[:])
		consumed += int64(n)
		if err != nil {
			return nil, consumed, readError(consumed, err)
		}

		length := int32(binary.BigEndian.Uint32(lenBuf[:]))
		if length < 0 {
			return nil, consumed, fmt.Errorf("%w: negative message length %d", ErrCorruptTransaction, length)
		}

		// Grow with the data actually present rather than trusting length up front.
		var msg bytes.Buffer
		copied, err := io.CopyN(&msg, r, int64(length))
		consumed += copied
		if err != nil {
			return nil, consumed, readError(consumed, err)
		}

		data := msg.Bytes()
		if data == nil {
			data = []byte{}
		}
		t.Messages = append(t.Messages, data)
	}

	if err := t.Validate(); err != nil {
		return nil, consumed, err
	}

	return t, consumed, nil
}

// Validate checks the integrity of a transaction using its checksum
func (t *Transaction) Validate() error {
	if computed := Checksum(t.Messages); computed != t.Checksum {
		return &CorruptError{Stored: t.Checksum, Computed: computed}
	}
	return nil
}

// Size returns the total size of the transaction when encoded
func (t *Transaction) Size() int {
	size := HeaderSize
	for _, msg := range t.Messages {
		size += lengthSize + len(msg)
	}
	return size
}

func readError(consumed int64, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &TruncatedError{Consumed: consumed}
	}
	return fmt.Errorf("read transaction: %w", err)
}
