package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/martylamb/messagelog/pkg/esc"
	"github.com/martylamb/messagelog/pkg/store"
)

// Server holds the API server state
type Server struct {
	log     MessageLog
	kv      KVMap // nil unless the log holds a map
	config  ServerConfig
	metrics *Metrics
	logger  *slog.Logger
}

// NewServer creates a new API server. kv may be nil.
func NewServer(log MessageLog, kv KVMap, config ServerConfig, metrics *Metrics) *Server {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		log:     log,
		kv:      kv,
		config:  config,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleAppend appends the request body as one transaction. A stuffed body may carry
// any number of messages; any other body is a single message.
func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodySize))
	if err != nil {
		s.metrics.RecordLogOperation("append", false, time.Since(start))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	messages := [][]byte{body}
	if isStuffed(r.Header.Get("Content-Type")) {
		messages, err = esc.Decode(bytes.NewReader(body))
		if err != nil {
			s.metrics.RecordLogOperation("append", false, time.Since(start))
			sendError(w, fmt.Sprintf("Invalid stuffed body: %v", err), http.StatusBadRequest)
			return
		}
	}

	if err := s.log.Append(messages...); err != nil {
		s.metrics.RecordLogOperation("append", false, time.Since(start))
		s.logger.Error("append failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
		sendError(w, fmt.Sprintf("Failed to append: %v", err), statusFor(err))
		return
	}
	s.metrics.RecordLogOperation("append", true, time.Since(start))
	s.metrics.RecordMessages(len(messages))
	s.updateMetrics()

	size, err := s.log.Size()
	if err != nil {
		s.logger.Error("size after append failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
		sendError(w, fmt.Sprintf("Failed to get size: %v", err), statusFor(err))
		return
	}
	sendSuccess(w, AppendResponse{Messages: len(messages), Size: size})
}

// handleReplay streams every message in the log as a stuffed stream. Errors after the
// first byte can only be reported by cutting the stream short, which a client sees as
// an unterminated message.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	w.Header().Set("Content-Type", ContentTypeStuffed)
	writer := esc.NewWriter(w)
	ctx := r.Context()

	_, err := s.log.Replay(func(message []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return writer.WriteMessage(message)
	})
	if err == nil {
		err = writer.Flush()
	}
	s.metrics.RecordLogOperation("replay", err == nil, time.Since(start))

	if err != nil {
		s.logger.Error("replay stream failed", "error", err, "request_id", middleware.GetReqID(ctx))
	}
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := s.log.Sync(); err != nil {
		s.metrics.RecordLogOperation("sync", false, time.Since(start))
		sendError(w, fmt.Sprintf("Failed to sync: %v", err), statusFor(err))
		return
	}
	s.metrics.RecordLogOperation("sync", true, time.Since(start))
	sendSuccess(w, map[string]string{"status": "synced"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	size, err := s.log.Size()
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to get stats: %v", err), statusFor(err))
		return
	}

	stats := StatsResponse{
		Path:       s.log.Path(),
		Size:       size,
		AutoSync:   s.log.AutoSync(),
		LastReplay: s.log.LastReplay(),
	}
	if s.kv != nil {
		keys := s.kv.Len()
		stats.Keys = &keys
	}
	sendSuccess(w, stats)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	key, ok := urlKey(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodySize))
	if err != nil {
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	prev, existed, err := s.kv.Put(key, string(body))
	s.metrics.RecordLogOperation("kv_put", err == nil, time.Since(start))
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to put key-value: %v", err), statusFor(err))
		return
	}

	response := map[string]interface{}{"key": key, "replaced": existed}
	if existed {
		response["previous"] = prev
	}
	sendSuccess(w, response)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key, ok := urlKey(w, r)
	if !ok {
		return
	}

	value, found := s.kv.Lookup(key)
	if !found {
		sendError(w, "Key not found", http.StatusNotFound)
		return
	}
	sendSuccess(w, KeyValueResponse{Key: key, Value: value})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	key, ok := urlKey(w, r)
	if !ok {
		return
	}

	_, existed, err := s.kv.Remove(key)
	s.metrics.RecordLogOperation("kv_delete", err == nil, time.Since(start))
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to delete key: %v", err), statusFor(err))
		return
	}
	if !existed {
		sendError(w, "Key not found", http.StatusNotFound)
		return
	}
	sendSuccess(w, map[string]string{"status": "deleted"})
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")

	keys := []string{}
	for _, key := range s.kv.Keys() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sendSuccess(w, map[string]interface{}{"keys": keys})
}

func urlKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		sendError(w, "Invalid key encoding", http.StatusBadRequest)
		return "", false
	}
	if key == "" {
		sendError(w, "Key is required", http.StatusBadRequest)
		return "", false
	}
	return key, true
}

func isStuffed(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == ContentTypeStuffed
}

func statusFor(err error) int {
	if errors.Is(err, store.ErrLogClosed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
