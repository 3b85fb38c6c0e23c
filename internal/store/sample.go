package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/xtxerr/eegstore/internal/storage/types"
)

const sampleColumns = 6

// insertSamplesTx writes samples with multi-row INSERTs of at most
// batchRows rows each. The context is checked every ctxCheckInterval
// statements so a cancelled write stops early and the caller rolls back.
func (s *Store) insertSamplesTx(ctx context.Context, tx *sqlx.Tx, samples []types.Sample) error {
	batchRows := s.config.InsertBatchRows

	for i, n := 0, 0; i < len(samples); i, n = i+batchRows, n+1 {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		end := i + batchRows
		if end > len(samples) {
			end = len(samples)
		}

		query, args := buildMultiRowInsert(samples[i:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert samples %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// buildMultiRowInsert builds one INSERT with a VALUES tuple per sample.
func buildMultiRowInsert(samples []types.Sample) (string, []interface{}) {
	args := make([]interface{}, 0, len(samples)*sampleColumns)

	var query strings.Builder
	query.Grow(96 + len(samples)*14)
	query.WriteString(`INSERT INTO eeg_samples (patient_id, recording_id, channel, time_offset, value, ingested_at) VALUES `)

	for i := range samples {
		if i > 0 {
			query.WriteByte(',')
		}
		query.WriteString("(?,?,?,?,?,?)")

		sm := &samples[i]
		args = append(args,
			sm.PatientID,
			sm.RecordingID,
			sm.Channel,
			sm.Offset,
			sm.Value,
			sm.IngestedAt,
		)
	}

	return query.String(), args
}
