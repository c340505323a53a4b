package api

import "github.com/martylamb/messagelog/pkg/store"

// MessageLog is the log surface the server needs
type MessageLog interface {
	Append(messages ...[]byte) error
	Replay(handler store.Handler) (*store.ReplayResult, error)
	Sync() error
	Size() (int64, error)
	AutoSync() bool
	LastReplay() store.ReplayResult
	Path() string
}

// KVMap is the map surface served under /kv
type KVMap interface {
	Put(key, value string) (string, bool, error)
	Lookup(key string) (*string, bool)
	Remove(key string) (string, bool, error)
	Keys() []string
	Len() int
}
