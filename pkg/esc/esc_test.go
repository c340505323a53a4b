package esc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hexString(b []byte) string {
	return fmt.Sprintf("%x", b)
}

func TestWriter_Write(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)

	require.NoError(t, w.WriteByte(1))
	_, err := w.Write([]byte{2, 3, 4})
	require.NoError(t, err)
	_, err = w.Write([]byte{4, 5, 6, 7, 8, 9}[1:])
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, w.WriteByte(3))
	require.NoError(t, w.Close())

	want := []byte{SEP, 1, 2, 3, 4, 5, 6, 7, 8, 9, SEP, SEP, 3, SEP}
	assert.Equal(t, hexString(want), hexString(out.Bytes()))
}

func TestWriter_EscapesReservedBytes(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)

	n, err := w.Write([]byte{ESC, FalseSEP, SEP})
	require.NoError(t, err)
	assert.Equal(t, 3, n, "Write reports payload bytes consumed")
	require.NoError(t, w.Close())

	want := []byte{SEP, ESC, ESC, 'n', ESC, FalseSEP, SEP}
	assert.Equal(t, hexString(want), hexString(out.Bytes()))
}

func TestWriter_EmptyMessage(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)

	require.NoError(t, w.Close())
	assert.Equal(t, []byte{SEP, SEP}, out.Bytes())
}

func TestWriter_CloseDoesNotCloseUnderlying(t *testing.T) {
	dst := &closeTracker{}
	w := NewWriter(dst)

	require.NoError(t, w.WriteMessage([]byte("abc")))
	require.NoError(t, w.Close())
	assert.False(t, dst.closed)
}

func TestReader_RoundTripAllBytes(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)
	for i := 0; i < 256; i++ {
		require.NoError(t, w.WriteByte(byte(i)))
	}
	require.NoError(t, w.Close())

	b := out.Bytes()
	// leading SEP + 256 payload bytes + one extra byte each for SEP and ESC + trailing SEP
	require.Len(t, b, 260)

	r := NewReader(bytes.NewReader(b))

	_, err := r.ReadByte()
	assert.Equal(t, io.EOF, err, "leading separator ends an empty frame")
	assert.False(t, r.AtEOF())
	require.NoError(t, r.Next())

	for i := 0; i < 256; i++ {
		c, err := r.ReadByte()
		require.NoError(t, err)
		assert.Equal(t, byte(i), c)
	}

	_, err = r.ReadByte()
	assert.Equal(t, io.EOF, err)
	_, err = r.ReadByte()
	assert.Equal(t, io.EOF, err, "should keep returning EOF until Next")
	assert.False(t, r.AtEOF())

	require.NoError(t, r.Next())
	_, err = r.ReadByte()
	assert.Equal(t, io.EOF, err)
	assert.True(t, r.AtEOF())
}

func TestReader_Next(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{SEP, 1, 2, 3, SEP, 4}))

	_, err := r.ReadByte()
	assert.Equal(t, io.EOF, err)
	require.NoError(t, r.Next())

	c, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(1), c)
	require.NoError(t, r.Next())

	c, err = r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(4), c)
	require.NoError(t, r.Next())
	assert.True(t, r.AtEOF())
}

func TestReader_NextWithConsecutiveEmptyMessages(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{SEP, 1, 2, SEP, SEP, 3, SEP, 4}))

	_, err := r.ReadByte()
	assert.Equal(t, io.EOF, err)
	require.NoError(t, r.Next())

	c, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(1), c)

	require.NoError(t, r.Next())
	require.NoError(t, r.Next())

	c, err = r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(3), c)
	require.NoError(t, r.Next())
}

func TestReader_InvalidEscape(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 2, ESC, 3, SEP, 4}))

	c, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(1), c)

	c, err = r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(2), c)

	_, err = r.ReadByte()
	assert.True(t, errors.Is(err, ErrInvalidEscape))
}

func TestReader_ReadArray(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, ESC, FalseSEP, 7, 8, 9, SEP}

	t.Run("exact buffer", func(t *testing.T) {
		r := NewReader(bytes.NewReader(data))

		b := make([]byte, 10)
		n, err := r.Read(b)
		require.NoError(t, err)
		assert.Equal(t, 10, n)
		assert.Equal(t, byte(3), b[3])
		assert.Equal(t, SEP, b[6])
		assert.Equal(t, byte(7), b[7])

		_, err = r.ReadByte()
		assert.Equal(t, io.EOF, err)
	})

	t.Run("short frame", func(t *testing.T) {
		r := NewReader(bytes.NewReader(data))

		b := make([]byte, 100)
		n, err := r.Read(b)
		require.NoError(t, err)
		assert.Equal(t, 10, n)
		assert.Equal(t, SEP, b[6])

		n, err = r.Read(b)
		assert.Equal(t, 0, n)
		assert.Equal(t, io.EOF, err)
	})
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name     string
		messages [][]byte
	}{
		{"none", [][]byte{}},
		{"single", [][]byte{[]byte("hello")}},
		{"several", [][]byte{[]byte("a"), []byte("bc"), []byte("def")}},
		{"empty messages", [][]byte{{}, []byte("x"), {}, {}}},
		{"reserved bytes", [][]byte{{SEP, ESC, FalseSEP}, {ESC, ESC}, {SEP, SEP}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(bytes.NewReader(Encode(tc.messages...)))
			require.NoError(t, err)
			require.Len(t, got, len(tc.messages))
			for i := range tc.messages {
				assert.Equal(t, tc.messages[i], got[i], "message %d", i)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		want error
	}{
		{"missing leading separator", []byte{'a', SEP}, ErrInvalidFraming},
		{"unterminated message", []byte{SEP, 'a', 'b'}, ErrUnterminatedMsg},
		{"bad escape", []byte{SEP, ESC, 'x', SEP}, ErrInvalidEscape},
		{"trailing garbage", []byte{SEP, 'a', SEP, 'b'}, ErrInvalidFraming},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tc.data))
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

type closeTracker struct {
	bytes.Buffer
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}
