package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martylamb/messagelog/pkg/store"
)

func setupLog(t *testing.T, transactions ...[]string) *store.MessageLog {
	log, err := store.Open(store.LogConfig{FilePath: filepath.Join(t.TempDir(), "source.log")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	for _, tx := range transactions {
		messages := make([][]byte, len(tx))
		for i, m := range tx {
			messages[i] = []byte(m)
		}
		require.NoError(t, log.Append(messages...))
	}
	return log
}

func openArchive(t *testing.T) *Archive {
	archive, err := OpenArchive(filepath.Join(t.TempDir(), "archive"))
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })
	return archive
}

func TestArchive_Export(t *testing.T) {
	log := setupLog(t, []string{"a", "b"}, []string{""}, []string{"d"})
	archive := openArchive(t)

	manifest, err := archive.Export(log)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), manifest.Messages)
	assert.Equal(t, log.Path(), manifest.Source)

	id, err := ksuid.Parse(manifest.ID)
	require.NoError(t, err)
	assert.False(t, id.IsNil())

	for seq, want := range []string{"a", "b", "", "d"} {
		got, err := archive.Get(uint64(seq))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}

	_, err = archive.Get(4)
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := archive.Manifest()
	require.NoError(t, err)
	assert.Equal(t, manifest.ID, stored.ID)
	assert.Equal(t, manifest.Messages, stored.Messages)
}

func TestArchive_ExportReplacesPreviousContents(t *testing.T) {
	archive := openArchive(t)

	_, err := archive.Export(setupLog(t, []string{"1", "2", "3"}))
	require.NoError(t, err)

	_, err = archive.Export(setupLog(t, []string{"only"}))
	require.NoError(t, err)

	_, err = archive.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := archive.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "only", string(got))
}

func TestArchive_AscendAcrossBatches(t *testing.T) {
	var tx []string
	for i := 0; i < batchSize*2+10; i++ {
		tx = append(tx, fmt.Sprintf("message-%d", i))
	}
	archive := openArchive(t)

	manifest, err := archive.Export(setupLog(t, tx))
	require.NoError(t, err)
	require.Equal(t, uint64(len(tx)), manifest.Messages)

	var seen []uint64
	err = archive.Ascend(uint64(batchSize), func(seq uint64, message []byte) bool {
		assert.Equal(t, fmt.Sprintf("message-%d", seq), string(message))
		seen = append(seen, seq)
		return len(seen) < 5
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1024, 1025, 1026, 1027, 1028}, seen)
}

func TestArchive_EmptyManifest(t *testing.T) {
	archive := openArchive(t)

	_, err := archive.Manifest()
	assert.ErrorIs(t, err, ErrNoExport)

	_, err = archive.Get(0)
	assert.ErrorIs(t, err, ErrNotFound)
}

// failingReplayer delivers count generated messages and then fails
type failingReplayer struct {
	count int
}

func (r failingReplayer) Replay(handler store.Handler) (*store.ReplayResult, error) {
	for i := 0; i < r.count; i++ {
		if err := handler([]byte(fmt.Sprintf("partial-%d", i))); err != nil {
			return nil, err
		}
	}
	return nil, errors.New("io failure")
}

func (r failingReplayer) Path() string { return "failing.log" }

func TestArchive_FailedExportKeepsPreviousExport(t *testing.T) {
	archive := openArchive(t)

	previous, err := archive.Export(setupLog(t, []string{"1", "2", "3"}))
	require.NoError(t, err)

	_, err = archive.Export(failingReplayer{count: batchSize*2 - 48})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "io failure")

	manifest, err := archive.Manifest()
	require.NoError(t, err)
	assert.Equal(t, previous.ID, manifest.ID)
	assert.Equal(t, uint64(3), manifest.Messages)

	for seq, want := range []string{"1", "2", "3"} {
		got, err := archive.Get(uint64(seq))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
	_, err = archive.Get(500)
	assert.ErrorIs(t, err, ErrNotFound)

	var seen []uint64
	require.NoError(t, archive.Ascend(0, func(seq uint64, _ []byte) bool {
		seen = append(seen, seq)
		return true
	}))
	assert.Equal(t, []uint64{0, 1, 2}, seen)

	// staged messages of the failed export are gone
	iter, err := archive.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{messagePrefix},
		UpperBound: []byte{messagePrefix + 1},
	})
	require.NoError(t, err)
	keys := 0
	for valid := iter.First(); valid; valid = iter.Next() {
		keys++
	}
	require.NoError(t, iter.Close())
	assert.Equal(t, 3, keys)

	// the next export still replaces the surviving one
	next, err := archive.Export(setupLog(t, []string{"only"}))
	require.NoError(t, err)
	assert.Equal(t, previous.Generation+1, next.Generation)
	_, err = archive.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)
}
