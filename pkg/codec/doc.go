// Package codec provides transaction serialization and deserialization for the message log.
//
// A transaction groups one or more opaque messages so they are written and replayed
// as a unit. The log file is nothing more than transactions written back to back,
// so any prefix of the file that ends on a transaction boundary is itself a valid log.
//
// # Transaction Format
//
// All integers are big-endian:
//
//	[Checksum(8)][Count(4)] { [Length(4)][Data] } x Count
//
// Fields:
//   - Checksum: CRC32 (IEEE) of the message bytes, stored as an unsigned 64-bit value
//   - Count: signed 32-bit number of messages, never negative
//   - Length: signed 32-bit byte length of the following message, never negative
//   - Data: message bytes
//
// The checksum covers only the concatenated message contents, in order. Count and
// length fields are not part of it. A transaction with no messages encodes as
// twelve bytes: a zero checksum and a zero count.
//
// # Usage
//
//	c := codec.NewTransactionCodec()
//
//	encoded, err := c.Encode([]byte("first"), []byte("second"))
//	if err != nil {
//	    return err
//	}
//
//	tx, n, err := c.Decode(bytes.NewReader(encoded))
//	if err != nil {
//	    return err
//	}
//
// # Error Handling
//
// Decode separates two failure modes that callers must treat differently:
//   - *TruncatedError (errors.Is ErrTruncatedTransaction): the source ended before the
//     declared layout was complete. This is what an interrupted append leaves behind.
//     Consumed tells the caller how many bytes were read.
//   - *CorruptError (errors.Is ErrCorruptTransaction): every declared byte was present
//     but the checksum does not match. The record was damaged after it was written.
//
// Negative counts or lengths are also reported as ErrCorruptTransaction. Any other
// read error is returned wrapped.
//
// # Thread Safety
//
// TransactionCodec holds no state and is safe for concurrent use.
package codec
