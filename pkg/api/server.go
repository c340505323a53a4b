// Package api serves a message log over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	metricsInterval = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// NewRouter builds the HTTP routes for s
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Unprotected for scraping
	r.Handle("/metrics", s.metrics.Handler())

	m := s.metrics
	r.Route("/api/v1", func(r chi.Router) {
		if s.config.APIKey != "" {
			r.Use(m.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey)))
		}

		r.Get("/health", m.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))

		// Log operations. Raw appends would corrupt a map's command stream.
		if s.kv == nil {
			r.Post("/messages", m.InstrumentHandler("POST", "/api/v1/messages", s.handleAppend))
		}
		r.Get("/messages", m.InstrumentHandler("GET", "/api/v1/messages", s.handleReplay))
		r.Post("/sync", m.InstrumentHandler("POST", "/api/v1/sync", s.handleSync))
		r.Get("/stats", m.InstrumentHandler("GET", "/api/v1/stats", s.handleStats))

		// Map operations
		if s.kv != nil {
			r.Put("/kv/{key}", m.InstrumentHandler("PUT", "/api/v1/kv/{key}", s.handlePut))
			r.Get("/kv/{key}", m.InstrumentHandler("GET", "/api/v1/kv/{key}", s.handleGet))
			r.Delete("/kv/{key}", m.InstrumentHandler("DELETE", "/api/v1/kv/{key}", s.handleDelete))
			r.Get("/kv", m.InstrumentHandler("GET", "/api/v1/kv", s.handleListKeys))
		}
	})

	return r
}

// StartServer serves log (and kv, when not nil) until ctx is cancelled
func StartServer(ctx context.Context, log MessageLog, kv KVMap, config ServerConfig) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server := NewServer(log, kv, config, NewMetrics(registry))
	if config.APIKey == "" {
		server.logger.Warn("no API key configured, /api/v1 is unauthenticated")
	}

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(config.Bind, strconv.Itoa(config.Port)),
		Handler:           NewRouter(server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go server.startMetricsUpdater(ctx)

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("starting msglog REST API server",
			"addr", httpServer.Addr, "log", log.Path())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	server.logger.Info("server stopped")
	return nil
}

// startMetricsUpdater refreshes the size gauges until ctx is done
func (s *Server) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	s.updateMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateMetrics()
		}
	}
}

func (s *Server) updateMetrics() {
	size, err := s.log.Size()
	if err != nil {
		return
	}
	keys := 0
	if s.kv != nil {
		keys = s.kv.Len()
	}
	s.metrics.UpdateLogStats(size, keys)
}
