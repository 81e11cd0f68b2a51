// Package server exposes lineage extraction over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/collineage/internal/store"
	"github.com/leapstack-labs/collineage/pkg/lineage"
)

// DefaultMaxBodyBytes bounds request bodies when Config.MaxBodyBytes is unset.
const DefaultMaxBodyBytes = 1 << 20

const shutdownTimeout = 5 * time.Second

// Config holds the server configuration.
type Config struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	MaxBodyBytes   int64
	// Options configure every extraction. A request may override the mode.
	Options []lineage.Option
	// Store enables saving and the history endpoints. Optional.
	Store  *store.SQLiteStore
	Logger *slog.Logger
}

// Server serves the lineage HTTP API.
type Server struct {
	addr           string
	allowedOrigins []string
	readTimeout    time.Duration
	maxBodyBytes   int64
	options        []lineage.Option
	extractor      *lineage.Extractor
	store          *store.SQLiteStore
	logger         *slog.Logger
}

// New creates a server from cfg.
func New(cfg Config) *Server {
	s := &Server{
		addr:           cfg.Addr,
		allowedOrigins: cfg.AllowedOrigins,
		readTimeout:    cfg.ReadTimeout,
		maxBodyBytes:   cfg.MaxBodyBytes,
		options:        cfg.Options,
		extractor:      lineage.New(cfg.Options...),
		store:          cfg.Store,
		logger:         cfg.Logger,
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = DefaultMaxBodyBytes
	}
	if s.readTimeout <= 0 {
		s.readTimeout = 10 * time.Second
	}
	if len(s.allowedOrigins) == 0 {
		s.allowedOrigins = []string{"*"}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.requestLogger,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: s.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			ExposedHeaders: []string{"Content-Disposition"},
			MaxAge:         300,
		}),
	)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/lineage", s.handleLineage)
		r.Post("/lineage/export", s.handleExport)
		r.Post("/lineage/batch", s.handleBatch)
		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.handleHistoryList)
			r.Get("/{id}", s.handleHistoryGet)
			r.Delete("/{id}", s.handleHistoryDelete)
		})
	})
	return r
}

// Serve listens on the configured address and serves until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting lineage server", "addr", "http://"+ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: s.readTimeout,
		ReadTimeout:       s.readTimeout,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down lineage server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
