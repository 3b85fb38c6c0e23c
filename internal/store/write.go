package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/storage/types"
)

// WriteChunk stores an accepted chunk: its audit entry and every sample,
// in one transaction. Either both are visible afterwards or neither is.
//
// The log row goes first so a competing writer with the same key fails on
// the primary key before any sample is inserted. On a conflict-class error
// the key is re-checked: once it is visible, ErrDuplicateChunk is returned
// and nothing of this call was stored. DuckDB reports the conflict while
// the competing transaction is still open, so an invisible key is retried
// with backoff until that transaction commits or rolls back, for at most
// BusyTimeout.
func (s *Store) WriteChunk(ctx context.Context, rec *types.IngestionRecord, samples []types.Sample) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return errors.ErrClosed
	}

	wait := s.config.BusyTimeout
	if wait <= 0 {
		wait = 5 * time.Second
	}
	deadline := time.Now().Add(wait)
	backoff := time.Millisecond

	for {
		err := s.TransactionContext(ctx, func(tx *sqlx.Tx) error {
			if err := insertRecordTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert log entry: %w", err)
			}
			return s.insertSamplesTx(ctx, tx, samples)
		})
		if err == nil {
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrapf(errors.ErrTimeout, "write %s: %v", rec.Key(), ctxErr)
		}
		if !s.dialect.isConflict(err) {
			return errors.Database(err, fmt.Sprintf("write chunk %s", rec.Key()))
		}

		exists, checkErr := s.LogExists(ctx, rec.RecordingID, rec.ChunkStart)
		if checkErr == nil && exists {
			return errors.Wrapf(errors.ErrDuplicateChunk, "chunk %s", rec.Key())
		}
		if time.Now().After(deadline) {
			return errors.Database(err, fmt.Sprintf("write chunk %s: conflict unresolved after %v", rec.Key(), wait))
		}

		select {
		case <-ctx.Done():
			return errors.Wrapf(errors.ErrTimeout, "write %s: %v", rec.Key(), ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxConflictBackoff)
	}
}

const maxConflictBackoff = 50 * time.Millisecond
