// Package server is the HTTP monitor of a running synchronizer: live
// events over WebSocket, a JSON status endpoint and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Server is the HTTP server for the monitor.
type Server struct {
	mux     *http.ServeMux
	handler *Handlers
	addr    string
	log     *zap.Logger
}

// NewServer creates a new HTTP server. Metrics are served from gatherer;
// a nil gatherer uses the default registry.
func NewServer(addr string, handler *Handlers, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		mux:     http.NewServeMux(),
		handler: handler,
		addr:    addr,
		log:     log,
	}
	s.setupRoutes(gatherer)
	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	// API routes
	s.mux.HandleFunc("/api/status", s.handler.HandleStatus)
	s.mux.HandleFunc("/api/config", s.handler.HandleConfig)
	s.mux.HandleFunc("/api/devices", s.handler.HandleDevices)

	// WebSocket
	s.mux.HandleFunc("/ws", s.handler.HandleWebSocket)

	s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler { return s.mux }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("monitor listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve monitor: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown monitor: %w", err)
	}
	return nil
}
