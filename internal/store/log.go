package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/storage/types"
)

const logColumns = `id, patient_id, recording_id, sequence_index, chunk_start, chunk_end,
	num_samples, num_channels, checksum, checksum_algo, ingested_at`

// LogExists reports whether a chunk with this key was accepted.
func (s *Store) LogExists(ctx context.Context, recordingID string, start float64) (bool, error) {
	ctx, cancel := s.readContext(ctx)
	defer cancel()

	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM ingestion_log WHERE recording_id = ? AND chunk_start = ?`,
		recordingID, start)
	if err != nil {
		return false, errors.Database(err, "log exists")
	}
	return n > 0, nil
}

// GetRecord returns the audit entry for a chunk key.
func (s *Store) GetRecord(ctx context.Context, recordingID string, start float64) (*types.IngestionRecord, error) {
	ctx, cancel := s.readContext(ctx)
	defer cancel()

	var rec types.IngestionRecord
	err := s.db.GetContext(ctx, &rec,
		`SELECT `+logColumns+` FROM ingestion_log WHERE recording_id = ? AND chunk_start = ?`,
		recordingID, start)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("chunk", types.ChunkKey{RecordingID: recordingID, Start: start}.String())
	}
	if err != nil {
		return nil, errors.Database(err, "get record")
	}
	rec.IngestedAt = rec.IngestedAt.UTC()
	return &rec, nil
}

// ListRecords returns the audit entries of a recording ordered by chunk
// start. limit <= 0 returns all of them.
func (s *Store) ListRecords(ctx context.Context, patientID, recordingID string, limit int) ([]types.IngestionRecord, error) {
	ctx, cancel := s.readContext(ctx)
	defer cancel()

	query := `SELECT ` + logColumns + ` FROM ingestion_log
		WHERE patient_id = ? AND recording_id = ?
		ORDER BY chunk_start`
	args := []interface{}{patientID, recordingID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var recs []types.IngestionRecord
	if err := s.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, errors.Database(err, "list records")
	}
	for i := range recs {
		recs[i].IngestedAt = recs[i].IngestedAt.UTC()
	}
	return recs, nil
}

// CountRecords returns the number of accepted chunks of a recording.
func (s *Store) CountRecords(ctx context.Context, patientID, recordingID string) (int64, error) {
	ctx, cancel := s.readContext(ctx)
	defer cancel()

	var n int64
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM ingestion_log WHERE patient_id = ? AND recording_id = ?`,
		patientID, recordingID)
	if err != nil {
		return 0, errors.Database(err, "count records")
	}
	return n, nil
}

func insertRecordTx(ctx context.Context, tx *sqlx.Tx, rec *types.IngestionRecord) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO ingestion_log (`+logColumns+`)
		VALUES (:id, :patient_id, :recording_id, :sequence_index, :chunk_start, :chunk_end,
			:num_samples, :num_channels, :checksum, :checksum_algo, :ingested_at)`, rec)
	return err
}
