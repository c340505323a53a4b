// Package storage exports a message log into a pebble database so its messages can be
// read back by sequence number without replaying the whole log.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/martylamb/messagelog/pkg/store"
)

const (
	messagePrefix byte = 'm'
	metaKey            = "\x00meta"

	// messages per committed batch during an export
	batchSize = 1024
)

var (
	// ErrNotFound is returned for a sequence number outside the archive
	ErrNotFound = errors.New("message not in archive")
	// ErrNoExport is returned by Manifest before the first successful export
	ErrNoExport = errors.New("archive holds no export")
)

// Replayer is the part of a message log an export reads
type Replayer interface {
	Replay(handler store.Handler) (*store.ReplayResult, error)
	Path() string
}

// Manifest describes the last export written to an archive
type Manifest struct {
	ID         string    `json:"id"` // ksuid, ordered by export time
	Source     string    `json:"source"`
	Messages   uint64    `json:"messages"`
	Generation uint64    `json:"generation"`
	ExportedAt time.Time `json:"exported_at"`
}

// Archive is a pebble database holding one exported copy of a log
type Archive struct {
	db *pebble.DB
}

// OpenArchive creates or opens the archive in dir
func OpenArchive(dir string) (*Archive, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", dir, err)
	}
	return &Archive{db: db}, nil
}

// Close closes the underlying database
func (a *Archive) Close() error {
	return a.db.Close()
}

// Export replaces the archive contents with every message in log. Messages are
// numbered from 0 in log order.
//
// Each export writes its messages under a fresh generation. The previous export
// stays readable until the final synced commit, which stores the new manifest and
// drops every other generation together. A failed replay leaves the previous
// export in place.
func (a *Archive) Export(log Replayer) (*Manifest, error) {
	var gen uint64 = 1
	prev, err := a.Manifest()
	switch {
	case err == nil:
		gen = prev.Generation + 1
	case !errors.Is(err, ErrNoExport):
		return nil, err
	}

	// leftovers of an export interrupted by a crash
	if err := a.drop(gen); err != nil {
		return nil, fmt.Errorf("failed to clear staged messages: %w", err)
	}

	var seq uint64
	batch := a.db.NewBatch()
	defer func() { batch.Close() }()

	_, err = log.Replay(func(message []byte) error {
		if err := batch.Set(messageKey(gen, seq), message, nil); err != nil {
			return err
		}
		seq++
		if batch.Count() < batchSize {
			return nil
		}
		if err := batch.Commit(pebble.NoSync); err != nil {
			return err
		}
		batch.Close()
		batch = a.db.NewBatch()
		return nil
	})
	if err != nil {
		if dropErr := a.drop(gen); dropErr != nil {
			err = errors.Join(err, dropErr)
		}
		return nil, fmt.Errorf("export of %s failed: %w", log.Path(), err)
	}

	manifest := &Manifest{
		ID:         ksuid.New().String(),
		Source:     log.Path(),
		Messages:   seq,
		Generation: gen,
		ExportedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		return nil, err
	}
	if err := batch.Set([]byte(metaKey), data, nil); err != nil {
		return nil, err
	}
	if err := batch.DeleteRange([]byte{messagePrefix}, generationPrefix(gen), nil); err != nil {
		return nil, err
	}
	if err := batch.DeleteRange(generationPrefix(gen+1), []byte{messagePrefix + 1}, nil); err != nil {
		return nil, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		_ = a.drop(gen)
		return nil, fmt.Errorf("failed to commit export: %w", err)
	}
	return manifest, nil
}

// drop deletes every message staged under gen
func (a *Archive) drop(gen uint64) error {
	return a.db.DeleteRange(generationPrefix(gen), generationPrefix(gen+1), pebble.NoSync)
}

// Manifest returns the description of the last export, or ErrNoExport
func (a *Archive) Manifest() (*Manifest, error) {
	data, err := a.get([]byte(metaKey))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoExport
		}
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("bad archive manifest: %w", err)
	}
	return &manifest, nil
}

// Get returns a copy of message seq
func (a *Archive) Get(seq uint64) ([]byte, error) {
	manifest, err := a.Manifest()
	if err != nil {
		if errors.Is(err, ErrNoExport) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a.get(messageKey(manifest.Generation, seq))
}

// Ascend calls fn for every message from seq onwards until fn returns false
func (a *Archive) Ascend(from uint64, fn func(seq uint64, message []byte) bool) error {
	manifest, err := a.Manifest()
	if errors.Is(err, ErrNoExport) {
		return nil
	}
	if err != nil {
		return err
	}

	iter, err := a.db.NewIter(&pebble.IterOptions{
		LowerBound: messageKey(manifest.Generation, from),
		UpperBound: generationPrefix(manifest.Generation + 1),
	})
	if err != nil {
		return err
	}

	for valid := iter.First(); valid; valid = iter.Next() {
		seq := binary.BigEndian.Uint64(iter.Key()[9:])
		if !fn(seq, append([]byte(nil), iter.Value()...)) {
			break
		}
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		return err
	}
	return iter.Close()
}

func (a *Archive) get(key []byte) ([]byte, error) {
	val, closer, err := a.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

func generationPrefix(gen uint64) []byte {
	key := make([]byte, 9)
	key[0] = messagePrefix
	binary.BigEndian.PutUint64(key[1:], gen)
	return key
}

// messageKey is 'm' + uint64be(generation) + uint64be(seq)
func messageKey(gen, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(generationPrefix(gen), seq)
}
