// Package query answers window queries over stored samples.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/logging"
	"github.com/xtxerr/eegstore/internal/storage/aggregate"
	"github.com/xtxerr/eegstore/internal/storage/config"
	"github.com/xtxerr/eegstore/internal/storage/types"
	"github.com/xtxerr/eegstore/internal/store"
	"github.com/xtxerr/eegstore/internal/validation"
)

// Scanner streams stored points of a window ordered by channel, then offset.
type Scanner interface {
	ScanWindow(ctx context.Context, q *types.WindowQuery, fn store.PointFunc) error
}

// Engine provides window queries.
//
// Engine is safe for concurrent use; queries do not block each other.
type Engine struct {
	config  *config.Config
	scanner Scanner
	log     *slog.Logger

	// Statistics
	stats Stats
}

// Stats holds query statistics.
type Stats struct {
	QueriesExecuted atomic.Int64
	RowsReturned    atomic.Int64
	EmptyResults    atomic.Int64
	Rejected        atomic.Int64
	Errors          atomic.Int64
	QueryNanos      atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	QueriesExecuted int64   `json:"queries_executed"`
	RowsReturned    int64   `json:"rows_returned"`
	EmptyResults    int64   `json:"empty_results"`
	Rejected        int64   `json:"rejected"`
	Errors          int64   `json:"errors"`
	QuerySeconds    float64 `json:"query_seconds"`
}

// errRowCap stops a scan that exceeded the configured row cap.
var errRowCap = errors.New("row cap reached")

// New creates a new query engine.
func New(cfg *config.Config, scanner Scanner) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Engine{
		config:  cfg,
		scanner: scanner,
		log:     logging.Component("query"),
	}
}

// Query returns the samples of q's recording with offset in [q.Start, q.End],
// one series per channel. An unknown recording or an inverted range yields
// an empty window, not an error.
func (e *Engine) Query(ctx context.Context, q types.WindowQuery) (*types.Window, error) {
	if err := validateQuery(&q); err != nil {
		e.stats.Rejected.Add(1)
		return nil, err
	}

	w := &types.Window{
		PatientID:   q.PatientID,
		RecordingID: q.RecordingID,
		Start:       q.Start,
		End:         q.End,
		Channels:    []types.ChannelSeries{},
	}
	if q.Empty() {
		e.stats.QueriesExecuted.Add(1)
		e.stats.EmptyResults.Add(1)
		return w, nil
	}

	if e.config.Query.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Query.Timeout)
		defer cancel()
	}

	var stats *aggregate.Set
	if q.WithStats {
		stats = aggregate.NewSet(true, e.config.Query.SketchAccuracy)
	}

	maxRows := e.config.Query.MaxRows
	var cur *types.ChannelSeries

	start := time.Now()
	err := e.scanner.ScanWindow(ctx, &q, func(channel string, offset, value float64) error {
		if maxRows > 0 && w.SampleCount >= maxRows {
			return errRowCap
		}
		if cur == nil || cur.Channel != channel {
			w.Channels = append(w.Channels, types.ChannelSeries{Channel: channel})
			cur = &w.Channels[len(w.Channels)-1]
		}
		cur.Offsets = append(cur.Offsets, offset)
		cur.Values = append(cur.Values, value)
		w.SampleCount++
		if stats != nil {
			stats.Process(channel, value)
		}
		return nil
	})
	e.stats.QueryNanos.Add(int64(time.Since(start)))

	switch {
	case errors.Is(err, errRowCap):
		e.stats.Rejected.Add(1)
		return nil, errors.Wrapf(errors.ErrWindowTooLarge,
			"window [%g, %g] of %s exceeds %d rows; narrow the range or the channel set",
			q.Start, q.End, q.RecordingID, maxRows)
	case err != nil:
		e.stats.Errors.Add(1)
		if ctx.Err() == context.DeadlineExceeded && !errors.Is(err, errors.ErrTimeout) {
			err = errors.Wrapf(errors.ErrTimeout, "query %s: %v", q.RecordingID, err)
		}
		e.log.Warn("window query failed", "recording", q.RecordingID, "error", err)
		return nil, err
	}

	if stats != nil {
		for i := range w.Channels {
			w.Channels[i].Stats, _ = stats.Result(w.Channels[i].Channel)
		}
	}

	e.stats.QueriesExecuted.Add(1)
	e.stats.RowsReturned.Add(int64(w.SampleCount))
	if w.SampleCount == 0 {
		e.stats.EmptyResults.Add(1)
	}
	return w, nil
}

func validateQuery(q *types.WindowQuery) error {
	if err := validation.ValidatePatientID(q.PatientID); err != nil {
		return err
	}
	if err := validation.ValidateRecordingID(q.RecordingID); err != nil {
		return err
	}
	if !q.Finite() {
		return fmt.Errorf("start_sec and end_sec must be finite numbers: %w", errors.ErrInvalidRange)
	}
	for _, ch := range q.Channels {
		if err := validation.ValidateChannel(ch); err != nil {
			return fmt.Errorf("channel filter: %w", err)
		}
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() StatsSnapshot {
	return StatsSnapshot{
		QueriesExecuted: e.stats.QueriesExecuted.Load(),
		RowsReturned:    e.stats.RowsReturned.Load(),
		EmptyResults:    e.stats.EmptyResults.Load(),
		Rejected:        e.stats.Rejected.Load(),
		Errors:          e.stats.Errors.Load(),
		QuerySeconds:    time.Duration(e.stats.QueryNanos.Load()).Seconds(),
	}
}
