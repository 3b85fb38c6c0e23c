// Package archive exports stored recordings to Parquet files and
// optionally uploads them to S3.
//
// An export is a snapshot: samples are streamed from the store in
// (channel, time offset) order into a fresh file, the file is read back to
// check its row count, and only then is it renamed into place. The audit
// trail of the recording is written next to it.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/logging"
	"github.com/xtxerr/eegstore/internal/storage/config"
	"github.com/xtxerr/eegstore/internal/storage/parquet"
	"github.com/xtxerr/eegstore/internal/storage/types"
	"github.com/xtxerr/eegstore/internal/store"
	"github.com/xtxerr/eegstore/internal/validation"
)

// batchRows is the number of samples buffered before a Parquet write.
const batchRows = 8192

// Source is the read side of the store an export needs.
type Source interface {
	RecordingStats(ctx context.Context, patientID, recordingID string) (store.RecordingStats, error)
	ScanRecording(ctx context.Context, patientID, recordingID string, fn func(*types.Sample) error) error
	ListRecords(ctx context.Context, patientID, recordingID string, limit int) ([]types.IngestionRecord, error)
}

// Result describes one finished export.
type Result struct {
	PatientID   string `json:"patient_id"`
	RecordingID string `json:"recording_id"`
	Path        string `json:"path"`
	ChunksPath  string `json:"chunks_path"`
	ObjectKey   string `json:"object_key,omitempty"`
	Rows        int64  `json:"rows"`
	Chunks      int64  `json:"chunks"`
	Bytes       int64  `json:"size_bytes"`
	Compression string `json:"compression"`
}

// Exporter writes recordings to Parquet.
//
// Exporter is safe for concurrent use. Two exports of the same recording
// write distinct files.
type Exporter struct {
	dir      string
	opts     parquet.Options
	source   Source
	uploader Uploader
	now      func() time.Time
	log      *slog.Logger

	exports atomic.Int64
	rows    atomic.Int64
	errs    atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the exporter counters.
type StatsSnapshot struct {
	Exports int64 `json:"exports"`
	Rows    int64 `json:"rows"`
	Errors  int64 `json:"errors"`
}

// New creates an exporter. A nil uploader keeps exports local.
func New(cfg *config.Config, source Source, uploader Uploader) *Exporter {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	opts := parquet.DefaultOptions()
	opts.Compression = parquet.ParseCompressionType(cfg.Archive.Compression)
	if cfg.Archive.RowGroupSize > 0 {
		opts.RowGroupSize = cfg.Archive.RowGroupSize
	}

	return &Exporter{
		dir:      cfg.ExportDir(),
		opts:     opts,
		source:   source,
		uploader: uploader,
		now:      time.Now,
		log:      logging.Component("archive"),
	}
}

// Export writes every sample of one recording to a new Parquet file.
func (e *Exporter) Export(ctx context.Context, patientID, recordingID string) (*Result, error) {
	if err := validation.ValidatePatientID(patientID); err != nil {
		return nil, err
	}
	if err := validation.ValidateRecordingID(recordingID); err != nil {
		return nil, err
	}

	res, err := e.export(ctx, patientID, recordingID)
	if err != nil {
		e.errs.Add(1)
		if errors.IsNotFound(err) || errors.IsValidation(err) {
			return nil, err
		}
		e.log.Warn("export failed", "patient", patientID, "recording", recordingID, "error", err)
		return nil, fmt.Errorf("export %s/%s: %w: %w", patientID, recordingID, errors.ErrExport, err)
	}

	e.exports.Add(1)
	e.rows.Add(res.Rows)
	e.log.Info("recording exported",
		"patient", patientID,
		"recording", recordingID,
		"rows", res.Rows,
		"path", res.Path,
		"object", res.ObjectKey)
	return res, nil
}

func (e *Exporter) export(ctx context.Context, patientID, recordingID string) (*Result, error) {
	stats, err := e.source.RecordingStats(ctx, patientID, recordingID)
	if err != nil {
		return nil, err
	}
	if stats.SampleCount == 0 {
		return nil, errors.NewRecordingNotFound(patientID, recordingID)
	}

	stamp := e.now().UTC().Format("20060102T150405.000000000Z")
	base := fmt.Sprintf("%s-%s", recordingID, stamp)
	dir := filepath.Join(e.dir, patientID)

	final := filepath.Join(dir, base+".parquet")
	rows, err := e.writeSamples(ctx, final+".tmp", patientID, recordingID)
	if err != nil {
		return nil, err
	}
	if rows != stats.SampleCount {
		os.Remove(final + ".tmp")
		return nil, fmt.Errorf("recording changed during export: wrote %d rows, expected %d", rows, stats.SampleCount)
	}

	info, err := parquet.GetFileInfo(final + ".tmp")
	if err != nil {
		os.Remove(final + ".tmp")
		return nil, fmt.Errorf("verify export: %w", err)
	}
	if info.NumRows != rows {
		os.Remove(final + ".tmp")
		return nil, fmt.Errorf("verify export: file has %d rows, wrote %d", info.NumRows, rows)
	}
	if err := os.Rename(final+".tmp", final); err != nil {
		os.Remove(final + ".tmp")
		return nil, fmt.Errorf("publish export: %w", err)
	}

	chunksPath := filepath.Join(dir, base+"-chunks.parquet")
	chunks, err := e.writeChunks(ctx, chunksPath, patientID, recordingID)
	if err != nil {
		return nil, err
	}

	res := &Result{
		PatientID:   patientID,
		RecordingID: recordingID,
		Path:        final,
		ChunksPath:  chunksPath,
		Rows:        rows,
		Chunks:      chunks,
		Bytes:       info.Size,
		Compression: e.opts.Compression.String(),
	}

	if e.uploader != nil {
		key, err := e.uploader.Upload(ctx, path.Join(patientID, base+".parquet"), final)
		if err != nil {
			return nil, err
		}
		if _, err := e.uploader.Upload(ctx, path.Join(patientID, base+"-chunks.parquet"), chunksPath); err != nil {
			return nil, err
		}
		res.ObjectKey = key
	}
	return res, nil
}

func (e *Exporter) writeSamples(ctx context.Context, file, patientID, recordingID string) (int64, error) {
	w, err := parquet.NewSampleWriter(file, e.opts)
	if err != nil {
		return 0, err
	}

	batch := make([]types.Sample, 0, batchRows)
	flush := func() error {
		if err := w.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	err = e.source.ScanRecording(ctx, patientID, recordingID, func(s *types.Sample) error {
		batch = append(batch, *s)
		if len(batch) == batchRows {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		w.Abort()
		return 0, err
	}

	if err := w.Close(); err != nil {
		w.Abort()
		return 0, err
	}
	return w.RowCount(), nil
}

func (e *Exporter) writeChunks(ctx context.Context, file, patientID, recordingID string) (int64, error) {
	recs, err := e.source.ListRecords(ctx, patientID, recordingID, 0)
	if err != nil {
		return 0, err
	}

	w, err := parquet.NewRecordWriter(file, e.opts)
	if err != nil {
		return 0, err
	}
	if err := w.Write(recs); err != nil {
		w.Abort()
		return 0, err
	}
	if err := w.Close(); err != nil {
		w.Abort()
		return 0, err
	}
	return w.RowCount(), nil
}

// Dir returns the export directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// Stats returns a snapshot of the counters.
func (e *Exporter) Stats() StatsSnapshot {
	return StatsSnapshot{
		Exports: e.exports.Load(),
		Rows:    e.rows.Load(),
		Errors:  e.errs.Load(),
	}
}
