package api

import "context"

// ServerStarter runs the HTTP server until ctx is cancelled
type ServerStarter interface {
	StartServer(ctx context.Context, log MessageLog, kv KVMap, config ServerConfig) error
}

// DefaultServerStarter listens on the configured address
type DefaultServerStarter struct{}

// NewServerStarter creates the default server starter
func NewServerStarter() ServerStarter {
	return &DefaultServerStarter{}
}

// StartServer starts the API server with the given configuration
func (s *DefaultServerStarter) StartServer(ctx context.Context, log MessageLog, kv KVMap, config ServerConfig) error {
	return StartServer(ctx, log, kv, config)
}
