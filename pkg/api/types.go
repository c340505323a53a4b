package api

import (
	"log/slog"

	"github.com/martylamb/messagelog/pkg/store"
)

// ContentTypeStuffed marks a request or response body holding byte-stuffed messages
const ContentTypeStuffed = "application/x-msglog-stuffed"

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port        int
	Bind        string
	APIKey      string
	MaxBodySize int64        // Largest accepted request body (0 = DefaultMaxBodySize)
	Logger      *slog.Logger // Defaults to slog.Default()
}

// DefaultMaxBodySize limits message uploads
const DefaultMaxBodySize = 16 << 20

// AppendResponse is returned after messages are appended
type AppendResponse struct {
	Messages int   `json:"messages"`
	Size     int64 `json:"size"`
}

// StatsResponse describes the served log
type StatsResponse struct {
	Path       string             `json:"path"`
	Size       int64              `json:"size"`
	AutoSync   bool               `json:"auto_sync"`
	LastReplay store.ReplayResult `json:"last_replay"`
	Keys       *int               `json:"keys,omitempty"`
}

// KeyValueResponse is one map entry
type KeyValueResponse struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}
