package store

import (
	"bufio"
	"io"
	"os"

	"github.com/martylamb/messagelog/pkg/codec"
)

// logReader provides sequential access to the transactions of a log file. It reads
// through its own section of the file and never moves the file's write position.
type logReader struct {
	reader *bufio.Reader
	codec  *codec.TransactionCodec
	offset int64
	size   int64
}

// newLogReader scans file from offset 0 up to size bytes.
func newLogReader(file *os.File, size int64, bufferSize int) *logReader {
	if bufferSize <= 0 {
		bufferSize = DefaultReadBufferSize
	}
	return &logReader{
		reader: bufio.NewReaderSize(io.NewSectionReader(file, 0, size), bufferSize),
		codec:  codec.NewTransactionCodec(),
		size:   size,
	}
}

// More reports whether any bytes remain past the current offset.
func (r *logReader) More() bool {
	return r.offset < r.size
}

// ReadNext decodes the transaction at the current offset. The offset advances only
// past complete, valid transactions.
func (r *logReader) ReadNext() (*codec.Transaction, error) {
	tx, n, err := r.codec.Decode(r.reader)
	if err != nil {
		return nil, err
	}
	r.offset += n
	return tx, nil
}

// Offset returns the end of the last transaction read
func (r *logReader) Offset() int64 {
	return r.offset
}
