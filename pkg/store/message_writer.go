package store

import "bytes"

// MessageWriter collects bytes written to it and appends them to the log as a single
// message when closed. It lets a caller stream a message whose size is not known up
// front, e.g. through encoding/binary or a json.Encoder.
//
// A MessageWriter is not safe for concurrent use. Goroutines sharing a log should
// each take their own writer; the log serializes their appends.
type MessageWriter struct {
	log    *MessageLog
	buf    bytes.Buffer
	closed bool
}

// NewMessageWriter returns a writer whose contents become one message on Close
func (l *MessageLog) NewMessageWriter() *MessageWriter {
	return &MessageWriter{log: l}
}

// Write buffers p as part of the pending message
func (w *MessageWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrWriterClosed
	}
	return w.buf.Write(p)
}

// WriteByte buffers a single byte
func (w *MessageWriter) WriteByte(c byte) error {
	if w.closed {
		return ErrWriterClosed
	}
	return w.buf.WriteByte(c)
}

// Len returns the number of bytes buffered so far
func (w *MessageWriter) Len() int {
	return w.buf.Len()
}

// Close appends the buffered bytes as one message. An empty writer appends an empty
// message.
func (w *MessageWriter) Close() error {
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true
	return w.log.Append(w.buf.Bytes())
}
