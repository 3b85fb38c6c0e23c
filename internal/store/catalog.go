package store

import (
	"context"
	"database/sql"

	"github.com/xtxerr/eegstore/internal/errors"
)

// RecordingStats is the aggregate of one recording's stored samples.
type RecordingStats struct {
	SampleCount int64
	StartOffset float64
	EndOffset   float64
}

// RecordingIDs returns the distinct recordings of a patient, sorted.
func (s *Store) RecordingIDs(ctx context.Context, patientID string) ([]string, error) {
	ctx, cancel := s.readContext(ctx)
	defer cancel()

	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT recording_id FROM eeg_samples WHERE patient_id = ? ORDER BY recording_id`,
		patientID)
	if err != nil {
		return nil, errors.Database(err, "list recordings")
	}
	return ids, nil
}

// RecordingStats aggregates count and offset range of a recording. A
// recording without samples has SampleCount 0.
func (s *Store) RecordingStats(ctx context.Context, patientID, recordingID string) (RecordingStats, error) {
	ctx, cancel := s.readContext(ctx)
	defer cancel()

	var row struct {
		Count sql.NullInt64   `db:"n"`
		Min   sql.NullFloat64 `db:"min_offset"`
		Max   sql.NullFloat64 `db:"max_offset"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT COUNT(*) AS n, MIN(time_offset) AS min_offset, MAX(time_offset) AS max_offset
		FROM eeg_samples WHERE patient_id = ? AND recording_id = ?`,
		patientID, recordingID)
	if err != nil {
		return RecordingStats{}, errors.Database(err, "recording stats")
	}
	return RecordingStats{
		SampleCount: row.Count.Int64,
		StartOffset: row.Min.Float64,
		EndOffset:   row.Max.Float64,
	}, nil
}

// RecordingChannels returns the distinct channels of a recording, sorted.
func (s *Store) RecordingChannels(ctx context.Context, patientID, recordingID string) ([]string, error) {
	ctx, cancel := s.readContext(ctx)
	defer cancel()

	var channels []string
	err := s.db.SelectContext(ctx, &channels,
		`SELECT DISTINCT channel FROM eeg_samples
		WHERE patient_id = ? AND recording_id = ? ORDER BY channel`,
		patientID, recordingID)
	if err != nil {
		return nil, errors.Database(err, "recording channels")
	}
	return channels, nil
}

// PatientChannels returns the distinct channels across a patient's recordings, sorted.
func (s *Store) PatientChannels(ctx context.Context, patientID string) ([]string, error) {
	ctx, cancel := s.readContext(ctx)
	defer cancel()

	var channels []string
	err := s.db.SelectContext(ctx, &channels,
		`SELECT DISTINCT channel FROM eeg_samples WHERE patient_id = ? ORDER BY channel`,
		patientID)
	if err != nil {
		return nil, errors.Database(err, "patient channels")
	}
	return channels, nil
}

// PatientSampleCount returns the number of stored samples of a patient.
func (s *Store) PatientSampleCount(ctx context.Context, patientID string) (int64, error) {
	ctx, cancel := s.readContext(ctx)
	defer cancel()

	var n int64
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM eeg_samples WHERE patient_id = ?`, patientID)
	if err != nil {
		return 0, errors.Database(err, "patient sample count")
	}
	return n, nil
}

// Counts holds whole-store totals.
type Counts struct {
	Samples    int64 `db:"samples" json:"samples"`
	Chunks     int64 `db:"chunks" json:"chunks"`
	Recordings int64 `db:"recordings" json:"recordings"`
	Patients   int64 `db:"patients" json:"patients"`
}

// Counts returns whole-store totals. Recordings and patients are counted
// from the ingestion log.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	ctx, cancel := s.readContext(ctx)
	defer cancel()

	var c Counts
	err := s.db.GetContext(ctx, &c, `SELECT
		(SELECT COUNT(*) FROM eeg_samples) AS samples,
		(SELECT COUNT(*) FROM ingestion_log) AS chunks,
		(SELECT COUNT(DISTINCT recording_id) FROM ingestion_log) AS recordings,
		(SELECT COUNT(DISTINCT patient_id) FROM ingestion_log) AS patients`)
	if err != nil {
		return Counts{}, errors.Database(err, "counts")
	}
	return c, nil
}
