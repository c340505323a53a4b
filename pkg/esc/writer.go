package esc

import (
	"bufio"
	"io"
)

// Writer byte-stuffs payload written to it. Output is buffered; Close or Flush pushes
// it to the underlying writer.
type Writer struct {
	w       *bufio.Writer
	started bool
}

// NewWriter returns a Writer that encodes onto w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteByte encodes a single payload byte.
func (w *Writer) WriteByte(c byte) error {
	if err := w.start(); err != nil {
		return err
	}

	switch c {
	case ESC:
		if err := w.w.WriteByte(ESC); err != nil {
			return err
		}
		return w.w.WriteByte(ESC)
	case SEP:
		if err := w.w.WriteByte(ESC); err != nil {
			return err
		}
		return w.w.WriteByte(FalseSEP)
	default:
		return w.w.WriteByte(c)
	}
}

// Write encodes p as payload of the current message. It returns the number of bytes
// of p consumed, not the number of bytes emitted.
func (w *Writer) Write(p []byte) (int, error) {
	for i, c := range p {
		if err := w.WriteByte(c); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// EndMessage writes the trailing separator. The next write starts a new message with
// a fresh leading separator. Ending a message with no payload still emits both
// separators, so empty messages survive a round trip.
func (w *Writer) EndMessage() error {
	if err := w.start(); err != nil {
		return err
	}
	if err := w.w.WriteByte(SEP); err != nil {
		return err
	}
	w.started = false
	return nil
}

// WriteMessage writes p as one complete message.
func (w *Writer) WriteMessage(p []byte) error {
	if _, err := w.Write(p); err != nil {
		return err
	}
	return w.EndMessage()
}

// Flush writes any buffered output to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Close ends the current message and flushes. It does not close the underlying writer.
func (w *Writer) Close() error {
	if err := w.EndMessage(); err != nil {
		return err
	}
	return w.Flush()
}

func (w *Writer) start() error {
	if w.started {
		return nil
	}
	if err := w.w.WriteByte(SEP); err != nil {
		return err
	}
	w.started = true
	return nil
}
