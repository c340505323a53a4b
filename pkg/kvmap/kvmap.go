// Package kvmap provides a string map whose every mutation is recorded in a
// message log and re-applied on open.
package kvmap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/martylamb/messagelog/pkg/bptree"
	"github.com/martylamb/messagelog/pkg/store"
)

const treeOrder = 32

// ErrBadCommand is returned when a logged message is not a map command
var ErrBadCommand = errors.New("bad map command")

// Map is an ordered string map backed by a message log
type Map struct {
	mutex sync.Mutex // serializes log-then-apply
	log   *store.MessageLog
	tree  *bptree.BPlusTree[string, *string]
}

// Open replays the log at config.FilePath into a new map
func Open(config store.LogConfig) (*Map, error) {
	m := &Map{tree: bptree.NewBPlusTree[string, *string](treeOrder)}

	log, err := store.Open(config, m.apply)
	if err != nil {
		return nil, fmt.Errorf("failed to open map: %w", err)
	}
	m.log = log
	return m, nil
}

func (m *Map) apply(message []byte) error {
	cmd, err := decodeCommand(message)
	if err != nil {
		return err
	}

	switch cmd.op {
	case opPut, opPutAll:
		for _, e := range cmd.entries {
			m.tree.Insert(e.Key, e.Value)
		}
	case opRemove:
		m.tree.Delete(cmd.entries[0].Key)
	case opClear:
		m.tree.Clear()
	}
	return nil
}

// record appends message and applies it once the append succeeds
func (m *Map) record(message []byte) error {
	if err := m.log.Append(message); err != nil {
		return err
	}
	return m.apply(message)
}

// Put sets key to value and returns the previous value
func (m *Map) Put(key, value string) (string, bool, error) {
	prev, existed, err := m.PutNullable(key, &value)
	return deref(prev), existed, err
}

// PutNullable sets key to value, which may be nil
func (m *Map) PutNullable(key string, value *string) (*string, bool, error) {
	message, err := encodePut(key, value)
	if err != nil {
		return nil, false, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	prev, existed := m.tree.Search(key)
	if err := m.record(message); err != nil {
		return nil, false, fmt.Errorf("failed to put %q: %w", key, err)
	}
	return prev, existed, nil
}

// Get returns the value for key. A nil value reads as the empty string.
func (m *Map) Get(key string) (string, bool) {
	value, ok := m.tree.Search(key)
	return deref(value), ok
}

// Lookup returns the stored value for key, which may be nil
func (m *Map) Lookup(key string) (*string, bool) {
	return m.tree.Search(key)
}

// ContainsKey reports whether key is present
func (m *Map) ContainsKey(key string) bool {
	_, ok := m.tree.Search(key)
	return ok
}

// Remove deletes key. Removing an absent key is not logged.
func (m *Map) Remove(key string) (string, bool, error) {
	message, err := encodeRemove(key)
	if err != nil {
		return "", false, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	prev, existed := m.tree.Search(key)
	if !existed {
		return "", false, nil
	}
	if err := m.record(message); err != nil {
		return "", false, fmt.Errorf("failed to remove %q: %w", key, err)
	}
	return deref(prev), true, nil
}

// PutAll sets every entry of values in a single logged command
func (m *Map) PutAll(values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	entries := make([]Entry, 0, len(values))
	for k, v := range values {
		entries = append(entries, Entry{Key: k, Value: &v})
	}
	message, err := encodePutAll(entries)
	if err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.record(message); err != nil {
		return fmt.Errorf("failed to put %d entries: %w", len(entries), err)
	}
	return nil
}

// Clear removes every key
func (m *Map) Clear() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.tree.Len() == 0 {
		return nil
	}
	if err := m.record(encodeClear()); err != nil {
		return fmt.Errorf("failed to clear: %w", err)
	}
	return nil
}

// Len returns the number of keys
func (m *Map) Len() int {
	return m.tree.Len()
}

// Keys returns all keys in ascending order
func (m *Map) Keys() []string {
	return m.tree.Keys()
}

// Ascend calls fn for each entry in key order until fn returns false. fn must not
// modify the map.
func (m *Map) Ascend(fn func(key string, value *string) bool) {
	m.tree.Ascend(fn)
}

// Sync forces the underlying log to disk
func (m *Map) Sync() error {
	return m.log.Sync()
}

// Close closes the underlying log
func (m *Map) Close() error {
	return m.log.Close()
}

// Log exposes the underlying message log
func (m *Map) Log() *store.MessageLog {
	return m.log
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
