package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/logging"
	"github.com/xtxerr/eegstore/internal/storage/archive"
	"github.com/xtxerr/eegstore/internal/storage/backpressure"
	"github.com/xtxerr/eegstore/internal/storage/catalog"
	"github.com/xtxerr/eegstore/internal/storage/config"
	"github.com/xtxerr/eegstore/internal/storage/ingestion"
	"github.com/xtxerr/eegstore/internal/storage/query"
	"github.com/xtxerr/eegstore/internal/storage/types"
	"github.com/xtxerr/eegstore/internal/store"
)

// statsInterval is how often a running service logs its counters.
const statsInterval = time.Minute

// Service is the main storage service that orchestrates all components.
type Service struct {
	mu sync.RWMutex

	config *config.Config
	log    *slog.Logger

	// Components
	store        *store.Store
	backpressure *backpressure.Controller
	ingestion    *ingestion.Coordinator
	query        *query.Engine
	catalog      *catalog.Catalog
	archive      *archive.Exporter

	// State
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	startTime time.Time
}

// Option customizes a Service.
type Option func(*options)

type options struct {
	rule     types.PatientRule
	uploader archive.Uploader
}

// WithPatientRule replaces the default prefix rule for deriving patient ids.
func WithPatientRule(rule types.PatientRule) Option {
	return func(o *options) { o.rule = rule }
}

// WithUploader sets the export uploader, overriding archive.s3.
func WithUploader(u archive.Uploader) Option {
	return func(o *options) { o.uploader = u }
}

// New opens the store and wires every component. The service accepts
// requests only after Start.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.InMemory() {
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, fmt.Errorf("ensure directories: %w", err)
		}
	}

	scfg := store.DefaultConfig()
	scfg.Driver = cfg.Database.Driver
	scfg.Path = cfg.DatabasePath()
	scfg.MaxOpenConns = cfg.Database.MaxOpenConns
	scfg.BusyTimeout = cfg.Database.BusyTimeout
	scfg.MemoryLimit = cfg.Database.MemoryLimit
	scfg.InsertBatchRows = cfg.Database.InsertBatchRows
	scfg.QueryTimeout = cfg.Query.Timeout

	st, err := store.Open(scfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	bp := backpressure.New(cfg)

	ing, err := ingestion.New(ingestion.Options{
		Config:      cfg,
		Writer:      st,
		PatientRule: o.rule,
		Admission:   bp,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("create ingestion: %w", err)
	}

	uploader := o.uploader
	if uploader == nil && cfg.Archive.S3.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		s3u, err := archive.NewS3Uploader(ctx, cfg.Archive.S3)
		cancel()
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("create s3 uploader: %w", err)
		}
		uploader = s3u
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		config:       cfg,
		log:          logging.Component("storage"),
		store:        st,
		backpressure: bp,
		ingestion:    ing,
		query:        query.New(cfg, st),
		catalog:      catalog.New(cfg, st),
		archive:      archive.New(cfg, st, uploader),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start starts background workers and opens the service for requests.
func (s *Service) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("service already running")
	}

	s.mu.Lock()
	s.startTime = time.Now()
	s.mu.Unlock()

	s.backpressure.SetOnLevelChange(s.onBackpressureChange)

	s.wg.Add(1)
	go s.statsWorker()

	s.log.Info("storage started",
		"driver", s.store.Driver(),
		"database", s.config.DatabasePath(),
		"admission", s.backpressure.IsEnabled())
	return nil
}

// Stop stops background workers and closes the store. A stopped service
// cannot be restarted.
func (s *Service) Stop() error {
	wasRunning := s.running.Swap(false)
	s.cancel()
	s.wg.Wait()

	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	if wasRunning {
		s.log.Info("storage stopped")
	}
	return nil
}

func (s *Service) checkRunning() error {
	if !s.running.Load() {
		return errors.ErrNotReady
	}
	return nil
}

// Ingest stores one chunk. See ingestion.Coordinator.Ingest.
func (s *Service) Ingest(ctx context.Context, chunk *types.Chunk) (*types.IngestResult, error) {
	if err := s.checkRunning(); err != nil {
		return nil, err
	}
	return s.ingestion.Ingest(ctx, chunk)
}

// Query reads one window.
func (s *Service) Query(ctx context.Context, q types.WindowQuery) (*types.Window, error) {
	if err := s.checkRunning(); err != nil {
		return nil, err
	}
	return s.query.Query(ctx, q)
}

// Summary describes one recording.
func (s *Service) Summary(ctx context.Context, patientID, recordingID string) (*types.RecordingSummary, error) {
	if err := s.checkRunning(); err != nil {
		return nil, err
	}
	return s.catalog.Summary(ctx, patientID, recordingID)
}

// ListRecordings lists the recordings of a patient.
func (s *Service) ListRecordings(ctx context.Context, patientID string) ([]types.RecordingSummary, error) {
	if err := s.checkRunning(); err != nil {
		return nil, err
	}
	return s.catalog.ListRecordings(ctx, patientID)
}

// PatientSummary describes everything stored for a patient.
func (s *Service) PatientSummary(ctx context.Context, patientID string) (*types.PatientSummary, error) {
	if err := s.checkRunning(); err != nil {
		return nil, err
	}
	return s.catalog.PatientSummary(ctx, patientID)
}

// Chunks returns the ingestion audit trail of a recording.
func (s *Service) Chunks(ctx context.Context, patientID, recordingID string, limit int) ([]types.IngestionRecord, error) {
	if err := s.checkRunning(); err != nil {
		return nil, err
	}
	return s.catalog.Chunks(ctx, patientID, recordingID, limit)
}

// Chunk returns the audit entry of one chunk.
func (s *Service) Chunk(ctx context.Context, patientID, recordingID string, start float64) (*types.IngestionRecord, error) {
	if err := s.checkRunning(); err != nil {
		return nil, err
	}
	return s.catalog.Chunk(ctx, patientID, recordingID, start)
}

// Export writes a recording to Parquet.
func (s *Service) Export(ctx context.Context, patientID, recordingID string) (*archive.Result, error) {
	if err := s.checkRunning(); err != nil {
		return nil, err
	}
	return s.archive.Export(ctx, patientID, recordingID)
}

// Health reports whether the database answers.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}

// Ready reports whether the service accepts requests.
func (s *Service) Ready(ctx context.Context) error {
	if err := s.checkRunning(); err != nil {
		return err
	}
	return s.store.Health(ctx)
}

// statsWorker periodically logs the counters.
func (s *Service) statsWorker() {
	defer s.wg.Done()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			st := s.ingestion.Stats()
			s.log.Info("storage stats",
				"chunks_accepted", st.ChunksAccepted,
				"chunks_duplicate", st.ChunksDuplicate,
				"chunks_rejected", st.ChunksRejected,
				"samples_written", st.SamplesWritten,
				"backpressure", s.backpressure.CurrentLevel().String())
		}
	}
}

// onBackpressureChange logs admission level changes.
func (s *Service) onBackpressureChange(old, new backpressure.Level) {
	attrs := []any{
		"from", old.String(),
		"to", new.String(),
		"inflight", s.backpressure.Inflight(),
	}
	switch {
	case new == backpressure.LevelEmergency:
		s.log.Error("ingest admission closed", attrs...)
	case new > old:
		s.log.Warn("backpressure increased", attrs...)
	default:
		s.log.Info("backpressure decreased", attrs...)
	}
}

// ServiceStats holds combined statistics.
type ServiceStats struct {
	Running      bool                         `json:"running"`
	Driver       string                       `json:"driver"`
	UptimeSec    float64                      `json:"uptime_sec"`
	Ingestion    ingestion.StatsSnapshot      `json:"ingestion"`
	Query        query.StatsSnapshot          `json:"query"`
	Archive      archive.StatsSnapshot        `json:"archive"`
	Backpressure backpressure.ControllerStats `json:"backpressure"`
}

// Stats returns combined statistics.
func (s *Service) Stats() ServiceStats {
	s.mu.RLock()
	start := s.startTime
	s.mu.RUnlock()

	var uptime time.Duration
	if !start.IsZero() && s.running.Load() {
		uptime = time.Since(start)
	}

	return ServiceStats{
		Running:      s.running.Load(),
		Driver:       s.store.Driver(),
		UptimeSec:    uptime.Seconds(),
		Ingestion:    s.ingestion.Stats(),
		Query:        s.query.Stats(),
		Archive:      s.archive.Stats(),
		Backpressure: s.backpressure.Stats(),
	}
}

// Counts returns table-level totals.
func (s *Service) Counts(ctx context.Context) (store.Counts, error) {
	return s.store.Counts(ctx)
}

// Config returns the current configuration.
func (s *Service) Config() *config.Config {
	return s.config
}

// PatientRule returns the rule deriving patient ids from recording ids.
func (s *Service) PatientRule() types.PatientRule {
	return s.ingestion.PatientRule()
}
