package esc

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// Reader decodes a byte-stuffed stream one frame at a time.
type Reader struct {
	r        io.ByteReader
	escaping bool
	eom      bool // current frame has ended
	eof      bool // underlying stream is exhausted
}

// NewReader returns a Reader that decodes from r.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{r: br}
}

// ReadByte returns the next decoded byte of the current frame, or io.EOF once the
// frame has ended.
func (r *Reader) ReadByte() (byte, error) {
	if r.eom {
		return 0, io.EOF
	}

	for {
		c, err := r.r.ReadByte()
		if err == io.EOF {
			r.eof = true
			r.eom = true
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		r.eof = false

		if r.escaping {
			r.escaping = false
			switch c {
			case ESC:
				return ESC, nil
			case FalseSEP:
				return SEP, nil
			default:
				return 0, fmt.Errorf("%w: 0x%02x after escape", ErrInvalidEscape, c)
			}
		}

		switch c {
		case ESC:
			r.escaping = true
		case SEP:
			r.eom = true
			return 0, io.EOF
		default:
			return c, nil
		}
	}
}

// Read fills p with decoded bytes from the current frame. At the end of the frame it
// returns io.EOF, and keeps doing so until Next is called.
func (r *Reader) Read(p []byte) (int, error) {
	for i := range p {
		c, err := r.ReadByte()
		if err == io.EOF && i > 0 {
			return i, nil
		}
		if err != nil {
			return i, err
		}
		p[i] = c
	}
	return len(p), nil
}

// Next discards the rest of the current frame and prepares to read the next one.
func (r *Reader) Next() error {
	for !r.eom {
		if _, err := r.ReadByte(); err != nil && err != io.EOF {
			return err
		}
	}
	r.escaping = false
	r.eom = false
	return nil
}

// AtEOF reports whether the underlying stream has been exhausted. It is false after a
// frame ends on a separator, even when no bytes follow it, until a read observes the
// end of the stream.
func (r *Reader) AtEOF() bool {
	return r.eof
}

// Decode reads a stream produced by Writer and returns its messages in order.
func Decode(src io.Reader) ([][]byte, error) {
	r := NewReader(src)
	messages := [][]byte{}

	for frame := 0; ; frame++ {
		data, err := io.ReadAll(r)
		if err != nil {
			return messages, err
		}

		if r.AtEOF() {
			if frame%2 == 1 {
				return messages, fmt.Errorf("%w: %d bytes", ErrUnterminatedMsg, len(data))
			}
			if len(data) > 0 {
				return messages, fmt.Errorf("%w: %d bytes outside a message", ErrInvalidFraming, len(data))
			}
			return messages, nil
		}

		if frame%2 == 1 {
			messages = append(messages, data)
		} else if len(data) > 0 {
			return messages, fmt.Errorf("%w: %d bytes outside a message", ErrInvalidFraming, len(data))
		}

		if err := r.Next(); err != nil {
			return messages, err
		}
	}
}

// Encode byte-stuffs messages into a single stream.
func Encode(messages ...[]byte) []byte {
	var out bytes.Buffer
	w := NewWriter(&out)
	for _, msg := range messages {
		// Writes into memory cannot fail.
		_ = w.WriteMessage(msg)
	}
	_ = w.Flush()
	return out.Bytes()
}
