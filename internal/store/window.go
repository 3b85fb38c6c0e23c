package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/storage/types"
)

// PointFunc receives one stored point. Returning an error stops the scan
// and the error is returned unchanged.
type PointFunc func(channel string, offset, value float64) error

// ScanWindow streams the points of a recording with offset in
// [q.Start, q.End], ordered by channel and then offset. Empty q.Channels
// selects every channel.
func (s *Store) ScanWindow(ctx context.Context, q *types.WindowQuery, fn PointFunc) error {
	ctx, cancel := s.readContext(ctx)
	defer cancel()

	query := `SELECT channel, time_offset, value FROM eeg_samples
		WHERE patient_id = ? AND recording_id = ?
		AND time_offset >= ? AND time_offset <= ?`
	args := []interface{}{q.PatientID, q.RecordingID, q.Start, q.End}

	if len(q.Channels) > 0 {
		query += ` AND channel IN (?)`
		args = append(args, q.Channels)

		var err error
		query, args, err = sqlx.In(query, args...)
		if err != nil {
			return errors.Database(err, "expand channel filter")
		}
	}
	query = s.db.Rebind(query + ` ORDER BY channel, time_offset`)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.Database(err, "scan window")
	}
	defer rows.Close()

	var (
		channel       string
		offset, value float64
	)
	for rows.Next() {
		if err := rows.Scan(&channel, &offset, &value); err != nil {
			return errors.Database(err, "scan window row")
		}
		if err := fn(channel, offset, value); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return errors.Wrapf(errors.ErrTimeout, "scan window: %v", ctx.Err())
		}
		return errors.Database(err, "scan window rows")
	}
	return nil
}

// ScanRecording streams every stored sample of a recording ordered by
// channel and offset. It is not bounded by QueryTimeout; callers pass
// their own deadline.
func (s *Store) ScanRecording(ctx context.Context, patientID, recordingID string, fn func(*types.Sample) error) error {
	rows, err := s.db.QueryxContext(ctx, `SELECT patient_id, recording_id, channel, time_offset, value, ingested_at
		FROM eeg_samples WHERE patient_id = ? AND recording_id = ?
		ORDER BY channel, time_offset`, patientID, recordingID)
	if err != nil {
		return errors.Database(err, "scan recording")
	}
	defer rows.Close()

	var sm types.Sample
	for rows.Next() {
		if err := rows.StructScan(&sm); err != nil {
			return errors.Database(err, "scan recording row")
		}
		sm.IngestedAt = sm.IngestedAt.UTC()
		if err := fn(&sm); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Database(err, "scan recording rows")
	}
	return nil
}
