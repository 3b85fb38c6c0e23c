// Package catalog derives recording and patient summaries by aggregating
// the stored samples. Nothing here keeps counters of its own, so a
// summary always reflects committed data.
package catalog

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/storage/config"
	"github.com/xtxerr/eegstore/internal/storage/types"
	"github.com/xtxerr/eegstore/internal/store"
	"github.com/xtxerr/eegstore/internal/validation"
)

// Reader is the storage the catalog aggregates over.
type Reader interface {
	RecordingIDs(ctx context.Context, patientID string) ([]string, error)
	RecordingStats(ctx context.Context, patientID, recordingID string) (store.RecordingStats, error)
	RecordingChannels(ctx context.Context, patientID, recordingID string) ([]string, error)
	PatientChannels(ctx context.Context, patientID string) ([]string, error)
	PatientSampleCount(ctx context.Context, patientID string) (int64, error)
	CountRecords(ctx context.Context, patientID, recordingID string) (int64, error)
	ListRecords(ctx context.Context, patientID, recordingID string, limit int) ([]types.IngestionRecord, error)
	GetRecord(ctx context.Context, recordingID string, start float64) (*types.IngestionRecord, error)
}

// summaryConcurrency bounds the per-recording fan-out of ListRecordings.
const summaryConcurrency = 4

// Catalog serves summary views.
type Catalog struct {
	config *config.Config
	reader Reader
}

// New creates a catalog.
func New(cfg *config.Config, reader Reader) *Catalog {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Catalog{config: cfg, reader: reader}
}

// Summary returns the summary of one recording. A recording without
// stored samples is ErrRecordingNotFound.
func (c *Catalog) Summary(ctx context.Context, patientID, recordingID string) (*types.RecordingSummary, error) {
	if err := validateIDs(patientID, recordingID); err != nil {
		return nil, err
	}

	st, err := c.reader.RecordingStats(ctx, patientID, recordingID)
	if err != nil {
		return nil, err
	}
	if st.SampleCount == 0 {
		return nil, errors.NewRecordingNotFound(patientID, recordingID)
	}

	channels, err := c.reader.RecordingChannels(ctx, patientID, recordingID)
	if err != nil {
		return nil, err
	}
	chunks, err := c.reader.CountRecords(ctx, patientID, recordingID)
	if err != nil {
		return nil, err
	}

	return &types.RecordingSummary{
		PatientID:    patientID,
		RecordingID:  recordingID,
		Channels:     channels,
		ChannelCount: len(channels),
		SampleCount:  st.SampleCount,
		StartOffset:  st.StartOffset,
		EndOffset:    st.EndOffset,
		ChunkCount:   chunks,
	}, nil
}

// ListRecordings returns the summaries of every recording of a patient,
// ordered by recording id. A patient without recordings yields an empty list.
func (c *Catalog) ListRecordings(ctx context.Context, patientID string) ([]types.RecordingSummary, error) {
	if err := validation.ValidatePatientID(patientID); err != nil {
		return nil, err
	}

	ids, err := c.reader.RecordingIDs(ctx, patientID)
	if err != nil {
		return nil, err
	}

	out := make([]types.RecordingSummary, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			s, err := c.Summary(gctx, patientID, id)
			if err != nil {
				return err
			}
			out[i] = *s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// PatientSummary aggregates every recording of a patient. A patient
// without stored samples is ErrPatientNotFound.
func (c *Catalog) PatientSummary(ctx context.Context, patientID string) (*types.PatientSummary, error) {
	recordings, err := c.ListRecordings(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(recordings) == 0 {
		return nil, errors.NewPatientNotFound(patientID)
	}

	var (
		channels []string
		total    int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		channels, err = c.reader.PatientChannels(gctx, patientID)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = c.reader.PatientSampleCount(gctx, patientID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &types.PatientSummary{
		PatientID:   patientID,
		Channels:    channels,
		SampleCount: total,
		Recordings:  recordings,
	}, nil
}

// Chunks returns the audit trail of a recording ordered by chunk start.
// limit <= 0 uses the configured chunk list limit.
func (c *Catalog) Chunks(ctx context.Context, patientID, recordingID string, limit int) ([]types.IngestionRecord, error) {
	if err := validateIDs(patientID, recordingID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > c.config.Query.ChunkListLimit {
		limit = c.config.Query.ChunkListLimit
	}

	recs, err := c.reader.ListRecords(ctx, patientID, recordingID, limit)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []types.IngestionRecord{}
	}
	return recs, nil
}

// Chunk returns the audit entry of the chunk starting at start. A chunk
// stored under another patient is not found.
func (c *Catalog) Chunk(ctx context.Context, patientID, recordingID string, start float64) (*types.IngestionRecord, error) {
	if err := validateIDs(patientID, recordingID); err != nil {
		return nil, err
	}

	rec, err := c.reader.GetRecord(ctx, recordingID, start)
	if err != nil {
		return nil, err
	}
	if rec.PatientID != patientID {
		return nil, errors.NewNotFound("chunk", rec.Key().String())
	}
	return rec, nil
}

func validateIDs(patientID, recordingID string) error {
	if err := validation.ValidatePatientID(patientID); err != nil {
		return err
	}
	return validation.ValidateRecordingID(recordingID)
}
