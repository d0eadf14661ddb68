// Package server provides the optional HTTP status server. It exposes the
// tracked users as JSON and the Prometheus metrics of the watcher.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Guliveer/twitch-live-watcher/internal/constants"
	"github.com/Guliveer/twitch-live-watcher/internal/logger"
	"github.com/Guliveer/twitch-live-watcher/internal/model"
)

// Source provides read-only views of the tracking state.
// *tracker.Tracker satisfies this interface.
type Source interface {
	Snapshot() []model.TrackingEntry
	Entry(login string) (model.TrackingEntry, bool)
}

// StatusServer serves the status JSON API and /metrics.
type StatusServer struct {
	addr      string
	log       *logger.Logger
	source    Source
	streamURL func(model.TrackedUser) string
	now       func() time.Time
	started   time.Time
	srv       *http.Server
}

// New creates a StatusServer bound to addr. streamURL renders channel links
// and may be nil.
func New(addr string, source Source, streamURL func(model.TrackedUser) string, log *logger.Logger) *StatusServer {
	s := &StatusServer{
		addr:      addr,
		log:       log,
		source:    source,
		streamURL: streamURL,
		now:       time.Now,
	}
	s.started = s.now()

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return context.Background()
		},
	}

	return s
}

// Handler returns the routed handler with request logging.
func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/users", s.handleUsers)
	mux.HandleFunc("GET /api/users/{login}", s.handleUser)
	mux.Handle("GET /metrics", promhttp.Handler())
	return withLogging(s.log, mux)
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It performs graceful shutdown when the context is done.
func (s *StatusServer) Run(ctx context.Context) error {
	s.log.Info("Status server starting", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("status server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Status server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status server shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func withLogging(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", time.Since(start).String(),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
