package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"testing"
)

func TestTransactionCodec_EncodeDecodeRoundTrip(t *testing.T) {
	codec := NewTransactionCodec()

	testCases := []struct {
		name     string
		messages [][]byte
	}{
		{
			name:     "no messages",
			messages: [][]byte{},
		},
		{
			name:     "single message",
			messages: [][]byte{[]byte("test 0")},
		},
		{
			name:     "multiple messages",
			messages: [][]byte{[]byte("this"), []byte("is"), []byte("a"), []byte("test")},
		},
		{
			name:     "empty message",
			messages: [][]byte{{}},
		},
		{
			name:     "empty messages between data",
			messages: [][]byte{{}, []byte("x"), {}, {}},
		},
		{
			name:     "binary data",
			messages: [][]byte{{0x00, 0x01, 0x02, 0x03}, {0xFF, 0xFE, 0xFD, 0xFC}},
		},
		{
			name:     "large message",
			messages: [][]byte{bytes.Repeat([]byte("v"), 64*1024)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := codec.Encode(tc.messages...)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			tx, n, err := codec.Decode(bytes.NewReader(encoded))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if n != int64(len(encoded)) {
				t.Errorf("Consumed mismatch: got %d, want %d", n, len(encoded))
			}

			if tx.Size() != len(encoded) {
				t.Errorf("Size mismatch: got %d, want %d", tx.Size(), len(encoded))
			}

			if len(tx.Messages) != len(tc.messages) {
				t.Fatalf("Message count mismatch: got %d, want %d", len(tx.Messages), len(tc.messages))
			}

			for i := range tc.messages {
				if !bytes.Equal(tx.Messages[i], tc.messages[i]) {
					t.Errorf("Message %d mismatch: got %v, want %v", i, tx.Messages[i], tc.messages[i])
				}
				if tx.Messages[i] == nil {
					t.Errorf("Message %d decoded as nil, want empty slice", i)
				}
			}
		})
	}
}

func TestTransactionCodec_Layout(t *testing.T) {
	codec := NewTransactionCodec()

	encoded, err := codec.Encode([]byte("ab"), []byte{}, []byte("c"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	want := HeaderSize + 4 + 2 + 4 + 0 + 4 + 1
	if len(encoded) != want {
		t.Fatalf("Encoded length: got %d, want %d", len(encoded), want)
	}

	if got := binary.BigEndian.Uint64(encoded[0:8]); got != uint64(crc32.ChecksumIEEE([]byte("abc"))) {
		t.Errorf("Checksum field: got %d, want crc32 of message bytes", got)
	}
	if encoded[0] != 0 || encoded[1] != 0 || encoded[2] != 0 || encoded[3] != 0 {
		t.Errorf("High checksum bytes should be zero: %v", encoded[0:4])
	}
	if got := binary.BigEndian.Uint32(encoded[8:12]); got != 3 {
		t.Errorf("Count field: got %d, want 3", got)
	}
	if got := binary.BigEndian.Uint32(encoded[12:16]); got != 2 {
		t.Errorf("First length field: got %d, want 2", got)
	}
	if string(encoded[16:18]) != "ab" {
		t.Errorf("First message: got %q", encoded[16:18])
	}
}

func TestTransactionCodec_EmptyTransaction(t *testing.T) {
	codec := NewTransactionCodec()

	encoded, err := codec.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if !bytes.Equal(encoded, make([]byte, HeaderSize)) {
		t.Errorf("Empty transaction: got %x, want %d zero bytes", encoded, HeaderSize)
	}
}

func TestTransactionCodec_Truncated(t *testing.T) {
	codec := NewTransactionCodec()

	encoded, err := codec.Encode([]byte("hello"), []byte("world"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	for cut := 0; cut < len(encoded); cut++ {
		_, n, err := codec.Decode(bytes.NewReader(encoded[:cut]))
		if !errors.Is(err, ErrTruncatedTransaction) {
			t.Fatalf("cut=%d: expected truncation, got %v", cut, err)
		}

		var te *TruncatedError
		if !errors.As(err, &te) {
			t.Fatalf("cut=%d: expected *TruncatedError, got %T", cut, err)
		}
		if te.Consumed != int64(cut) || n != int64(cut) {
			t.Errorf("cut=%d: consumed %d (returned %d)", cut, te.Consumed, n)
		}
		if errors.Is(err, ErrCorruptTransaction) {
			t.Errorf("cut=%d: truncation must not look like corruption", cut)
		}
	}
}

func TestTransactionCodec_ChecksumValidation(t *testing.T) {
	codec := NewTransactionCodec()

	t.Run("corrupted message data fails", func(t *testing.T) {
		encoded, err := codec.Encode([]byte{1, 1, 1, 1, 1, 1, 1})
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		encoded[len(encoded)-1] = 2

		_, _, err = codec.Decode(bytes.NewReader(encoded))
		if !errors.Is(err, ErrCorruptTransaction) {
			t.Fatalf("Expected corruption, got %v", err)
		}

		var ce *CorruptError
		if !errors.As(err, &ce) {
			t.Fatalf("Expected *CorruptError, got %T", err)
		}
		if ce.Stored == ce.Computed {
			t.Errorf("Stored and computed checksums should differ")
		}
	})

	t.Run("corrupted checksum fails", func(t *testing.T) {
		encoded, err := codec.Encode([]byte("test value"))
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		encoded[0] ^= 0x01

		_, _, err = codec.Decode(bytes.NewReader(encoded))
		if !errors.Is(err, ErrCorruptTransaction) {
			t.Fatalf("Expected corruption, got %v", err)
		}
	})

	t.Run("every single bit flip is rejected", func(t *testing.T) {
		encoded, err := codec.Encode([]byte("first message"), []byte("second"), []byte{0x0a, 0x5c})
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		for i := range encoded {
			for bit := 0; bit < 8; bit++ {
				damaged := append([]byte{}, encoded...)
				damaged[i] ^= 1 << bit

				if _, _, err := codec.Decode(bytes.NewReader(damaged)); err == nil {
					t.Fatalf("byte %d bit %d: damaged transaction accepted", i, bit)
				}
			}
		}
	})

	t.Run("flip in message data is a checksum failure", func(t *testing.T) {
		encoded, err := codec.Encode([]byte("payload"))
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		for i := HeaderSize + 4; i < len(encoded); i++ {
			damaged := append([]byte{}, encoded...)
			damaged[i] ^= 0x80

			_, _, err := codec.Decode(bytes.NewReader(damaged))
			if !errors.Is(err, ErrCorruptTransaction) {
				t.Fatalf("byte %d: expected corruption, got %v", i, err)
			}
		}
	})
}

func TestTransactionCodec_NegativeFields(t *testing.T) {
	codec := NewTransactionCodec()

	t.Run("negative count", func(t *testing.T) {
		data := make([]byte, HeaderSize)
		binary.BigEndian.PutUint32(data[8:], 0xFFFFFFFF)

		_, _, err := codec.Decode(bytes.NewReader(data))
		if !errors.Is(err, ErrCorruptTransaction) {
			t.Fatalf("Expected corruption, got %v", err)
		}
	})

	t.Run("negative length", func(t *testing.T) {
		data := make([]byte, HeaderSize+4)
		binary.BigEndian.PutUint32(data[8:], 1)
		binary.BigEndian.PutUint32(data[12:], 0x80000000)

		_, _, err := codec.Decode(bytes.NewReader(data))
		if !errors.Is(err, ErrCorruptTransaction) {
			t.Fatalf("Expected corruption, got %v", err)
		}
	})
}

func TestTransactionCodec_SequentialDecode(t *testing.T) {
	codec := NewTransactionCodec()

	var stream bytes.Buffer
	for _, msg := range []string{"one", "two", "three"} {
		if _, err := codec.WriteTo(&stream, NewTransaction([]byte(msg))); err != nil {
			t.Fatalf("WriteTo failed: %v", err)
		}
	}

	r := bytes.NewReader(stream.Bytes())
	var got []string
	for {
		tx, _, err := codec.Decode(r)
		if err != nil {
			var te *TruncatedError
			if errors.As(err, &te) && te.Consumed == 0 {
				break
			}
			t.Fatalf("Decode failed: %v", err)
		}
		got = append(got, string(tx.Messages[0]))
	}

	if len(got) != 3 || got[0] != "one" || got[1] != "two" || got[2] != "three" {
		t.Errorf("Sequential decode: got %v", got)
	}
}

func TestTransactionCodec_ReadErrorPassthrough(t *testing.T) {
	codec := NewTransactionCodec()
	boom := errors.New("disk on fire")

	_, _, err := codec.Decode(io.MultiReader(bytes.NewReader([]byte{0, 0}), &failingReader{err: boom}))
	if !errors.Is(err, boom) {
		t.Fatalf("Expected underlying error, got %v", err)
	}
	if errors.Is(err, ErrTruncatedTransaction) || errors.Is(err, ErrCorruptTransaction) {
		t.Errorf("I/O failure must not be classified as truncation or corruption: %v", err)
	}
}

func TestNewTransaction_CopiesMessages(t *testing.T) {
	msg := []byte("mutable")
	tx := NewTransaction(msg)
	msg[0] = 'M'

	if string(tx.Messages[0]) != "mutable" {
		t.Errorf("Transaction shares caller buffer: %q", tx.Messages[0])
	}
	if err := tx.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, r.err
}
