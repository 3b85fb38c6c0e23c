// Package server exposes the EEG store over HTTP.
//
// The server decodes ingest requests (JSON or protobuf, optionally
// snappy-compressed), serves window and catalog queries, and maps storage
// errors to HTTP statuses with a JSON error body.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xtxerr/eegstore/config"
	"github.com/xtxerr/eegstore/internal/logging"
	"github.com/xtxerr/eegstore/internal/storage"
	"github.com/xtxerr/eegstore/internal/storage/archive"
	"github.com/xtxerr/eegstore/internal/storage/types"
)

// =============================================================================
// Backend
// =============================================================================

// Backend is the storage the HTTP surface serves from.
type Backend interface {
	Ingest(ctx context.Context, chunk *types.Chunk) (*types.IngestResult, error)
	Query(ctx context.Context, q types.WindowQuery) (*types.Window, error)
	Summary(ctx context.Context, patientID, recordingID string) (*types.RecordingSummary, error)
	PatientSummary(ctx context.Context, patientID string) (*types.PatientSummary, error)
	Chunks(ctx context.Context, patientID, recordingID string, limit int) ([]types.IngestionRecord, error)
	Chunk(ctx context.Context, patientID, recordingID string, start float64) (*types.IngestionRecord, error)
	Export(ctx context.Context, patientID, recordingID string) (*archive.Result, error)
	Ready(ctx context.Context) error
	Stats() storage.ServiceStats
}

// =============================================================================
// Server Configuration
// =============================================================================

// Config holds server configuration.
type Config struct {
	// Listen is the address to listen on (e.g., "0.0.0.0:8000").
	Listen string

	// MaxBodyBytes limits request bodies. The decoded size of a
	// compressed body may be DecodeFactor times larger.
	MaxBodyBytes int64

	// DecodeFactor bounds decompressed ingest bodies relative to MaxBodyBytes.
	DecodeFactor int

	// ReadHeaderTimeout bounds slow clients sending headers.
	ReadHeaderTimeout time.Duration

	// DrainTimeout is how long in-flight requests may finish on shutdown.
	DrainTimeout time.Duration

	// CORSOrigins lists allowed browser origins. "*" allows any.
	CORSOrigins []string

	// RejectLimit is the number of rejected requests per client and
	// RejectWindow after which the client gets 429. 0 disables.
	RejectLimit  int
	RejectWindow time.Duration
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Listen:            config.DefaultListenAddress,
		MaxBodyBytes:      config.DefaultMaxBodyBytes,
		DecodeFactor:      4,
		ReadHeaderTimeout: config.DefaultReadHeaderTimeout,
		DrainTimeout:      config.DefaultDrainTimeout,
		CORSOrigins:       []string{config.DefaultCORSOrigin},
		RejectLimit:       config.DefaultRejectLimit,
		RejectWindow:      time.Minute,
	}
}

// =============================================================================
// Server
// =============================================================================

// Server is the HTTP front end of the store.
type Server struct {
	cfg     Config
	backend Backend
	router  chi.Router
	rejects *RateLimiter
	log     *slog.Logger
}

// New creates a server. Zero config fields take their defaults.
func New(cfg Config, backend Backend) *Server {
	def := DefaultConfig()
	if cfg.Listen == "" {
		cfg.Listen = def.Listen
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.DecodeFactor <= 0 {
		cfg.DecodeFactor = def.DecodeFactor
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = def.ReadHeaderTimeout
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = def.DrainTimeout
	}
	if cfg.RejectWindow <= 0 {
		cfg.RejectWindow = def.RejectWindow
	}

	s := &Server{
		cfg:     cfg,
		backend: backend,
		router:  chi.NewRouter(),
		rejects: NewRateLimiter(cfg.RejectLimit, cfg.RejectWindow),
		log:     logging.Component("server"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(requestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)

		r.With(s.rejectLimit).Post("/ingest/", s.handleIngest)
		r.With(s.rejectLimit).Post("/ingest", s.handleIngest)

		r.Route("/eeg/{patient}/recordings", func(r chi.Router) {
			r.Get("/", s.handleRecordings)
			r.Route("/{recording}", func(r chi.Router) {
				r.Get("/summary", s.handleSummary)
				r.Get("/data", s.handleData)
				r.Get("/chunks", s.handleChunks)
				r.Get("/chunks/{start}", s.handleChunk)
				r.Post("/export", s.handleExport)
			})
		})
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on cfg.Listen and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then drains in-flight requests
// for at most DrainTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go s.rejects.cleanupLoop(cleanupCtx)

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "address", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down", "drain_timeout", s.cfg.DrainTimeout)
	drainCtx, cancel := context.WithTimeout(context.Background(), s.cfg.DrainTimeout)
	defer cancel()

	if err := srv.Shutdown(drainCtx); err != nil {
		srv.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("shutdown complete")
	return nil
}
