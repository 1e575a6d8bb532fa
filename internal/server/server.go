// Package server provides the HTTP API for medqa.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hyperjump/medqa/internal/config"
	"github.com/hyperjump/medqa/internal/index"
	"github.com/hyperjump/medqa/internal/metrics"
	"github.com/hyperjump/medqa/internal/models"
	"go.uber.org/zap"
)

// Querier answers one query. *pipeline.Pipeline implements it.
type Querier interface {
	Run(ctx context.Context, query string) (*models.Result, error)
}

// StatusProvider reports index metadata. *index.Index implements it.
type StatusProvider interface {
	Stats() index.Stats
}

// RowProvider returns the stored chunks of one corpus row. *index.Live implements it.
type RowProvider interface {
	Row(ctx context.Context, rowID int) ([]models.Chunk, error)
}

// Server is the HTTP server for the medqa API.
type Server struct {
	pipeline Querier
	index    StatusProvider
	metrics  *metrics.Metrics
	config   *config.ServerConfig
	timeout  time.Duration
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. queryTimeout bounds each
// request; the pipeline applies its own per-query timeout as well.
func NewServer(
	p Querier,
	idx StatusProvider,
	m *metrics.Metrics,
	cfg *config.ServerConfig,
	queryTimeout time.Duration,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queryTimeout <= 0 {
		queryTimeout = 2 * time.Minute
	}
	return &Server{
		pipeline: p,
		index:    idx,
		metrics:  m,
		config:   cfg,
		timeout:  queryTimeout,
		logger:   logger,
	}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout + 5*time.Second))
		r.Use(middleware.Compress(5))
		r.Post("/ask", s.handleAsk)
		r.Get("/status", s.handleStatus)
		r.Get("/rows/{row}", s.handleRow)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

type ctxKey struct{}

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// RequestIDFrom returns the request ID stored by the server middleware.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)))
	})
}
