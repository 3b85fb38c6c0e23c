package store

import (
	"context"
	"fmt"
)

// =============================================================================
// Schema Migration
// =============================================================================

// migrations are applied in order at every Open. Each statement is
// idempotent, so re-running them against an existing database is a no-op.
//
// eeg_samples is append-only: no statement in this package updates or
// deletes its rows. Its two composite indexes serve the all-channel and
// the per-channel window scans. ingestion_log carries the dedup key as
// its primary key.
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "eeg_samples",
		sql: `CREATE TABLE IF NOT EXISTS eeg_samples (
			patient_id   VARCHAR   NOT NULL,
			recording_id VARCHAR   NOT NULL,
			channel      VARCHAR   NOT NULL,
			time_offset  DOUBLE    NOT NULL,
			value        DOUBLE    NOT NULL,
			ingested_at  TIMESTAMP NOT NULL
		)`,
	},
	{
		name: "eeg_samples.idx_samples_window",
		sql: `CREATE INDEX IF NOT EXISTS idx_samples_window
			ON eeg_samples (patient_id, recording_id, time_offset)`,
	},
	{
		name: "eeg_samples.idx_samples_channel_window",
		sql: `CREATE INDEX IF NOT EXISTS idx_samples_channel_window
			ON eeg_samples (patient_id, recording_id, channel, time_offset)`,
	},
	{
		name: "ingestion_log",
		sql: `CREATE TABLE IF NOT EXISTS ingestion_log (
			id             VARCHAR   NOT NULL,
			patient_id     VARCHAR   NOT NULL,
			recording_id   VARCHAR   NOT NULL,
			sequence_index BIGINT    NOT NULL,
			chunk_start    DOUBLE    NOT NULL,
			chunk_end      DOUBLE    NOT NULL,
			num_samples    BIGINT    NOT NULL,
			num_channels   BIGINT    NOT NULL,
			checksum       VARCHAR   NOT NULL,
			checksum_algo  VARCHAR   NOT NULL,
			ingested_at    TIMESTAMP NOT NULL,
			PRIMARY KEY (recording_id, chunk_start)
		)`,
	},
	{
		name: "ingestion_log.idx_ingestion_patient",
		sql: `CREATE INDEX IF NOT EXISTS idx_ingestion_patient
			ON ingestion_log (patient_id, recording_id, chunk_start)`,
	},
}

// migrate applies the schema in one transaction.
func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for _, m := range migrations {
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// Tables lists the tables the schema creates.
func Tables() []string {
	return []string{"eeg_samples", "ingestion_log"}
}
