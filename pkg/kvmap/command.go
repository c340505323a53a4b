package kvmap

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Command opcodes, one per logged mutation
const (
	opPut    byte = 'p'
	opRemove byte = 'r'
	opClear  byte = 'c'
	opPutAll byte = 'P'
)

// Entry is one key and its nullable value
type Entry struct {
	Key   string
	Value *string
}

// command is a decoded map mutation
type command struct {
	op      byte
	entries []Entry // put: one entry; remove: one entry, value unused; put-all: all
}

func encodePut(key string, value *string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(opPut)
	if err := writeString(&buf, &key); err != nil {
		return nil, err
	}
	if err := writeString(&buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeRemove(key string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(opRemove)
	if err := writeString(&buf, &key); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeClear() []byte {
	return []byte{opClear}
}

func encodePutAll(entries []Entry) ([]byte, error) {
	if uint64(len(entries)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d entries", ErrBadCommand, len(entries))
	}

	var buf bytes.Buffer
	buf.WriteByte(opPutAll)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(entries)))
	for _, e := range entries {
		key := e.Key
		if err := writeString(&buf, &key); err != nil {
			return nil, err
		}
		if err := writeString(&buf, e.Value); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeCommand(message []byte) (*command, error) {
	if len(message) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrBadCommand)
	}

	r := bytes.NewReader(message[1:])
	cmd := &command{op: message[0]}

	switch cmd.op {
	case opPut:
		key, err := readKey(r)
		if err != nil {
			return nil, err
		}
		value, err := readString(r)
		if err != nil {
			return nil, err
		}
		cmd.entries = []Entry{{Key: key, Value: value}}
	case opRemove:
		key, err := readKey(r)
		if err != nil {
			return nil, err
		}
		cmd.entries = []Entry{{Key: key}}
	case opClear:
	case opPutAll:
		var count uint32
		if err := binary.Read(r, binary.BigEndian, &count); err != nil {
			return nil, fmt.Errorf("%w: put-all count: %v", ErrBadCommand, err)
		}
		cmd.entries = make([]Entry, 0, min(count, 1024))
		for i := uint32(0); i < count; i++ {
			key, err := readKey(r)
			if err != nil {
				return nil, err
			}
			value, err := readString(r)
			if err != nil {
				return nil, err
			}
			cmd.entries = append(cmd.entries, Entry{Key: key, Value: value})
		}
	default:
		return nil, fmt.Errorf("%w: unrecognized command %q", ErrBadCommand, cmd.op)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %q", ErrBadCommand, r.Len(), cmd.op)
	}
	return cmd, nil
}

// writeString writes a null flag, then the length-prefixed string only when present.
func writeString(buf *bytes.Buffer, s *string) error {
	if s == nil {
		buf.WriteByte(1)
		return nil
	}
	if uint64(len(*s)) > math.MaxUint32 {
		return fmt.Errorf("%w: string of %d bytes", ErrBadCommand, len(*s))
	}
	buf.WriteByte(0)
	_ = binary.Write(buf, binary.BigEndian, uint32(len(*s)))
	buf.WriteString(*s)
	return nil
}

func readString(r *bytes.Reader) (*string, error) {
	isNull, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: missing null flag", ErrBadCommand)
	}
	switch isNull {
	case 1:
		return nil, nil
	case 0:
	default:
		return nil, fmt.Errorf("%w: bad null flag %d", ErrBadCommand, isNull)
	}

	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("%w: string length: %v", ErrBadCommand, err)
	}
	if int64(length) > int64(r.Len()) {
		return nil, fmt.Errorf("%w: string of %d bytes, %d remain", ErrBadCommand, length, r.Len())
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	s := string(data)
	return &s, nil
}

func readKey(r *bytes.Reader) (string, error) {
	key, err := readString(r)
	if err != nil {
		return "", err
	}
	if key == nil {
		return "", fmt.Errorf("%w: null key", ErrBadCommand)
	}
	return *key, nil
}
