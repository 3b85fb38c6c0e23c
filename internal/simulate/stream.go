package simulate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/eegstore/internal/logging"
	"github.com/xtxerr/eegstore/internal/server"
	"github.com/xtxerr/eegstore/internal/storage/types"
)

// Ingester accepts one chunk at a time. *client.Client satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, chunk *types.Chunk) (*server.IngestResponse, error)
}

// Recording is one synthetic recording to stream.
type Recording struct {
	ID       string
	Channels []string
	Rate     int
	Data     [][]float64
}

// NewRecording generates a recording of the given length.
func NewRecording(id string, channels []string, rate, seconds int, seed int64) Recording {
	return Recording{
		ID:       id,
		Channels: channels,
		Rate:     rate,
		Data:     Generate(channels, rate, seconds, seed),
	}
}

// Options control a streaming run.
type Options struct {
	// ChunkSeconds is the chunk length. Default 1.
	ChunkSeconds int

	// Limit caps chunks per recording. 0 sends everything.
	Limit int

	// Delay is the pause between chunks of one recording.
	Delay time.Duration

	// ProgressEvery logs progress every n chunks. Default 10.
	ProgressEvery int
}

// Report summarizes a streamed recording.
type Report struct {
	RecordingID string
	Sent        int
	Accepted    int
	Duplicates  int
	Samples     int64
}

// Streamer sends recordings to an Ingester.
type Streamer struct {
	ing  Ingester
	opts Options
	log  *slog.Logger
	now  func() time.Time
}

// NewStreamer creates a streamer.
func NewStreamer(ing Ingester, opts Options) *Streamer {
	if opts.ChunkSeconds <= 0 {
		opts.ChunkSeconds = 1
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 10
	}
	return &Streamer{
		ing:  ing,
		opts: opts,
		log:  logging.Component("simulate"),
		now:  time.Now,
	}
}

// Chunks cuts rec into ingest chunks, honoring Limit.
func (s *Streamer) Chunks(rec Recording) []*types.Chunk {
	size := rec.Rate * s.opts.ChunkSeconds
	parts := Split(rec.Data, size)
	if s.opts.Limit > 0 && len(parts) > s.opts.Limit {
		parts = parts[:s.opts.Limit]
	}

	chunks := make([]*types.Chunk, len(parts))
	for i, data := range parts {
		chunks[i] = &types.Chunk{
			RecordingID:   rec.ID,
			SequenceIndex: int64(i),
			Channels:      rec.Channels,
			Data:          data,
			StartOffset:   float64(i * s.opts.ChunkSeconds),
			SamplingRate:  float64(rec.Rate),
		}
	}
	return chunks
}

// Stream sends every chunk of rec in order and stops at the first error.
func (s *Streamer) Stream(ctx context.Context, rec Recording) (Report, error) {
	chunks := s.Chunks(rec)
	rep := Report{RecordingID: rec.ID}

	for i, c := range chunks {
		c.ProducedAt = s.now().UTC()

		resp, err := s.ing.Ingest(ctx, c)
		if err != nil {
			return rep, fmt.Errorf("chunk %d of %s: %w", i, rec.ID, err)
		}
		rep.Sent++
		if resp.Status == string(types.StatusDuplicate) {
			rep.Duplicates++
		} else {
			rep.Accepted++
			rep.Samples += int64(resp.SamplesWritten)
		}

		if i == 0 || (i+1)%s.opts.ProgressEvery == 0 {
			s.log.Info("sent chunks",
				"recording_id", rec.ID,
				"sent", i+1,
				"total", len(chunks))
		}

		if s.opts.Delay > 0 && i < len(chunks)-1 {
			select {
			case <-ctx.Done():
				return rep, ctx.Err()
			case <-time.After(s.opts.Delay):
			}
		}
	}
	return rep, nil
}

// StreamAll streams recordings concurrently, one producer per recording.
// Reports are returned in input order.
func (s *Streamer) StreamAll(ctx context.Context, recs []Recording) ([]Report, error) {
	reports := make([]Report, len(recs))
	g, ctx := errgroup.WithContext(ctx)
	for i, rec := range recs {
		g.Go(func() error {
			rep, err := s.Stream(ctx, rec)
			reports[i] = rep
			return err
		})
	}
	err := g.Wait()
	return reports, err
}
