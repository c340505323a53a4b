// Package esc implements a self-delimiting byte-stuffing encoding for message streams.
//
// One byte value, SEP, is reserved as a message boundary. Payload occurrences of SEP
// and of the escape byte ESC are replaced by two-byte escape sequences, so a reader
// can find message boundaries without any length prefix. This lets a producer start
// writing a message before it knows how large the message will be.
//
// # Encoding
//
//	ESC      -> ESC ESC
//	SEP      -> ESC FalseSEP
//	any byte -> itself
//
// Every message written by a Writer is bracketed by separators: a leading SEP before
// the first byte and a trailing SEP when the message ends. Two messages m1 and m2
// therefore encode as
//
//	SEP m1 SEP SEP m2 SEP
//
// # Decoding
//
// A Reader treats every bare SEP as the end of the current frame. After a frame ends,
// Read keeps returning io.EOF until Next is called. AtEOF reports whether the
// underlying stream itself is exhausted, which is distinct from the end of a frame.
// Read against the layout above, the frames are: an empty frame before the leading
// SEP, m1, an empty frame between the two separators, m2, and a final empty frame
// that ends with the stream. Decode understands this layout and returns only the
// messages.
package esc

import "errors"

// Reserved byte values.
const (
	ESC      byte = '\\' // escape; encoded in the stream as ESC ESC
	SEP      byte = 0x0a // message separator; encoded as ESC FalseSEP when it is payload
	FalseSEP byte = 'n'  // means a literal SEP when it follows ESC
)

// Errors
var (
	ErrInvalidEscape   = errors.New("invalid escape sequence")
	ErrInvalidFraming  = errors.New("invalid message framing")
	ErrUnterminatedMsg = errors.New("unterminated message")
)
