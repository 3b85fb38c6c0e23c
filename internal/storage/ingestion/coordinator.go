// Package ingestion accepts chunks and stores them exactly once per
// (recording, chunk start) key.
//
// The flow for one chunk is: admission → validation → patient derivation
// → dedup lookup → expansion to samples → fingerprint → atomic write.
// Concurrent calls with the same key inside one process share a single
// flight; across processes the ingestion log's primary key decides.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/logging"
	"github.com/xtxerr/eegstore/internal/storage/backpressure"
	"github.com/xtxerr/eegstore/internal/storage/config"
	"github.com/xtxerr/eegstore/internal/storage/fingerprint"
	"github.com/xtxerr/eegstore/internal/storage/types"
	"github.com/xtxerr/eegstore/internal/validation"
)

// Writer is the storage the coordinator needs.
type Writer interface {
	LogExists(ctx context.Context, recordingID string, start float64) (bool, error)
	WriteChunk(ctx context.Context, rec *types.IngestionRecord, samples []types.Sample) error
}

// Options configures a Coordinator.
type Options struct {
	// Config supplies ingestion limits and the fingerprint algorithm.
	Config *config.Config

	// Writer stores accepted chunks. Required.
	Writer Writer

	// PatientRule derives the patient id. Nil uses a PrefixRule on
	// Config.Ingestion.PatientSeparator.
	PatientRule types.PatientRule

	// Admission rejects ingests under overload. Nil admits everything.
	Admission *backpressure.Controller

	// Now is the clock for ingested_at. Nil uses time.Now.
	Now func() time.Time
}

// Coordinator is the only component that writes samples.
//
// Coordinator is safe for concurrent use.
type Coordinator struct {
	config    *config.Config
	writer    Writer
	rule      types.PatientRule
	hasher    *fingerprint.Hasher
	admission *backpressure.Controller
	now       func() time.Time
	log       *slog.Logger

	flights singleflight.Group

	stats Stats
}

// Stats holds ingestion statistics.
type Stats struct {
	ChunksReceived  atomic.Int64
	ChunksAccepted  atomic.Int64
	ChunksDuplicate atomic.Int64
	ChunksRejected  atomic.Int64
	ChunksOverload  atomic.Int64
	SamplesWritten  atomic.Int64
	Errors          atomic.Int64
	WriteNanos      atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	ChunksReceived  int64   `json:"chunks_received"`
	ChunksAccepted  int64   `json:"chunks_accepted"`
	ChunksDuplicate int64   `json:"chunks_duplicate"`
	ChunksRejected  int64   `json:"chunks_rejected"`
	ChunksOverload  int64   `json:"chunks_overloaded"`
	SamplesWritten  int64   `json:"samples_written"`
	Errors          int64   `json:"errors"`
	WriteSeconds    float64 `json:"write_seconds"`
}

// New creates a coordinator.
func New(opts Options) (*Coordinator, error) {
	if opts.Writer == nil {
		return nil, errors.NewMissingField("ingestion writer")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	hasher, err := fingerprint.New(cfg.Ingestion.Fingerprint)
	if err != nil {
		return nil, err
	}

	rule := opts.PatientRule
	if rule == nil {
		rule = types.PrefixRule{Separator: cfg.Ingestion.PatientSeparator}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Coordinator{
		config:    cfg,
		writer:    opts.Writer,
		rule:      rule,
		hasher:    hasher,
		admission: opts.Admission,
		now:       now,
		log:       logging.Component("ingestion"),
	}, nil
}

// Ingest stores c unless a chunk with the same key was already accepted.
//
// The result is StatusAccepted for exactly one call per key, and
// StatusDuplicate with zero samples written for every other call. A
// duplicate is not an error. Validation failures and storage failures
// return an error and write nothing.
func (c *Coordinator) Ingest(ctx context.Context, chunk *types.Chunk) (*types.IngestResult, error) {
	c.stats.ChunksReceived.Add(1)

	if chunk == nil {
		c.stats.ChunksRejected.Add(1)
		return nil, errors.NewMissingField("chunk")
	}
	// Defaults go on a copy; the caller's chunk is left as sent.
	local := *chunk
	patientID, err := c.prepare(&local)
	if err != nil {
		c.stats.ChunksRejected.Add(1)
		return nil, err
	}

	if c.admission != nil {
		release, err := c.admission.Acquire()
		if err != nil {
			c.stats.ChunksOverload.Add(1)
			return nil, err
		}
		defer release()
	}

	var res types.IngestResult
	for attempt := 1; ; attempt++ {
		var leader bool
		res, leader, err = c.fly(ctx, &local, patientID)
		if err == nil || leader || ctx.Err() != nil || attempt == maxFlightAttempts {
			break
		}
		// The leader failed under its own context. Look the key up again
		// under ours instead of inheriting that failure.
		c.log.Debug("retrying after failed flight", "recording", local.RecordingID, "start", local.StartOffset, "error", err)
	}
	if err != nil {
		c.stats.Errors.Add(1)
		return nil, err
	}

	switch res.Status {
	case types.StatusAccepted:
		c.stats.ChunksAccepted.Add(1)
		c.stats.SamplesWritten.Add(int64(res.SamplesWritten))
	case types.StatusDuplicate:
		c.stats.ChunksDuplicate.Add(1)
	}
	return &res, nil
}

// maxFlightAttempts bounds how often a follower re-runs a failed flight.
const maxFlightAttempts = 3

// fly joins or starts the flight for chunk's key. Only the leader runs
// ingest; a follower reports an accepted result as a duplicate. Every
// caller stops waiting when its own ctx is done.
func (c *Coordinator) fly(ctx context.Context, chunk *types.Chunk, patientID string) (types.IngestResult, bool, error) {
	key := chunk.Key()

	// leader is written by the flight goroutine before it sends on ch.
	leader := false
	ch := c.flights.DoChan(key.String(), func() (interface{}, error) {
		leader = true
		return c.ingest(ctx, chunk, patientID)
	})

	select {
	case <-ctx.Done():
		return types.IngestResult{}, false, errors.Wrapf(errors.ErrTimeout, "ingest %s: %v", key, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return types.IngestResult{}, leader, r.Err
		}
		res := *r.Val.(*types.IngestResult)
		if !leader && res.Status == types.StatusAccepted {
			res.Status = types.StatusDuplicate
			res.SamplesWritten = 0
		}
		return res, leader, nil
	}
}

// prepare fills defaults, validates the chunk and derives the patient.
func (c *Coordinator) prepare(chunk *types.Chunk) (string, error) {
	if chunk.SamplingRate == 0 && chunk.SamplesPerChunk >= 0 {
		chunk.SamplingRate = float64(chunk.SamplesPerChannel())
	}

	if err := c.validate(chunk); err != nil {
		return "", err
	}

	patientID, err := c.rule.PatientID(chunk.RecordingID)
	if err != nil {
		return "", err
	}
	if err := validation.ValidatePatientID(patientID); err != nil {
		return "", err
	}
	return patientID, nil
}

func (c *Coordinator) validate(chunk *types.Chunk) error {
	if err := validation.ValidateRecordingID(chunk.RecordingID); err != nil {
		return err
	}

	v := errors.NewValidationErrors()
	limits := c.config.Ingestion

	if len(chunk.Channels) == 0 {
		v.AddChunk("channels", "at least one channel is required")
	} else if len(chunk.Channels) > limits.MaxChannels {
		v.AddChunk("channels", "too many channels")
	} else if err := validation.ValidateChannels(chunk.Channels); err != nil {
		v.Add(err)
	}

	if len(chunk.Data) != len(chunk.Channels) {
		v.AddChunk("data", "one value row per channel is required")
	}

	spc := chunk.SamplesPerChannel()
	switch {
	case chunk.SamplesPerChunk < 0:
		v.AddChunk("samples_per_chunk", "must not be negative")
	case spc < 1:
		v.AddChunk("samples_per_chunk", "at least one sample per channel is required")
	case spc > limits.MaxSamplesPerChunk:
		v.AddChunk("samples_per_chunk", "too many samples per channel")
	}

	for i, row := range chunk.Data {
		if len(row) != spc {
			v.AddChunk(fmt.Sprintf("data[%d]", i), "every row must have samples_per_chunk values")
			break
		}
		if !allFinite(row) {
			v.AddChunk(fmt.Sprintf("data[%d]", i), "values must be finite")
			break
		}
	}

	if !finite(chunk.StartOffset) || chunk.StartOffset < 0 {
		v.AddChunk("chunk_start_sec", "must be finite and >= 0")
	}
	if !finite(chunk.SamplingRate) || chunk.SamplingRate <= 0 {
		v.AddChunk("sampling_rate", "must be finite and > 0")
	}

	return v.Err()
}

// ingest runs once per flight.
func (c *Coordinator) ingest(ctx context.Context, chunk *types.Chunk, patientID string) (*types.IngestResult, error) {
	key := chunk.Key()
	res := &types.IngestResult{
		Status:      types.StatusDuplicate,
		PatientID:   patientID,
		RecordingID: chunk.RecordingID,
	}

	exists, err := c.writer.LogExists(ctx, key.RecordingID, key.Start)
	if err != nil {
		return nil, errors.Wrapf(err, "ingest %s: lookup", key)
	}
	if exists {
		c.log.Debug("duplicate chunk", "recording", key.RecordingID, "start", key.Start)
		return res, nil
	}

	now := c.now().UTC()
	samples := Expand(chunk, patientID, now)
	sum := c.hasher.Chunk(chunk)

	rec := &types.IngestionRecord{
		ID:            uuid.NewString(),
		PatientID:     patientID,
		RecordingID:   chunk.RecordingID,
		SequenceIndex: chunk.SequenceIndex,
		ChunkStart:    chunk.StartOffset,
		ChunkEnd:      chunk.EndOffset(),
		NumSamples:    int64(len(samples)),
		NumChannels:   int64(len(chunk.Channels)),
		Checksum:      sum,
		ChecksumAlgo:  c.hasher.Algorithm(),
		IngestedAt:    now,
	}

	start := time.Now()
	err = c.writer.WriteChunk(ctx, rec, samples)
	c.stats.WriteNanos.Add(int64(time.Since(start)))

	if errors.Is(err, errors.ErrDuplicateChunk) {
		c.log.Debug("duplicate chunk after write race", "recording", key.RecordingID, "start", key.Start)
		return res, nil
	}
	if err != nil {
		c.log.Warn("chunk write failed", "recording", key.RecordingID, "start", key.Start, "error", err)
		return nil, errors.Wrapf(err, "ingest %s", key)
	}

	c.log.Debug("chunk accepted",
		"patient", patientID,
		"recording", key.RecordingID,
		"start", key.Start,
		"samples", len(samples))

	res.Status = types.StatusAccepted
	res.SamplesWritten = len(samples)
	res.Fingerprint = sum
	return res, nil
}

// Expand turns a chunk into stored samples, channel-major. Sample s of
// channel c is at offset start + s/rate.
func Expand(chunk *types.Chunk, patientID string, ingestedAt time.Time) []types.Sample {
	spc := chunk.SamplesPerChannel()
	samples := make([]types.Sample, 0, len(chunk.Channels)*spc)

	for ci, ch := range chunk.Channels {
		row := chunk.Data[ci]
		for s := 0; s < spc; s++ {
			samples = append(samples, types.Sample{
				PatientID:   patientID,
				RecordingID: chunk.RecordingID,
				Channel:     ch,
				Offset:      chunk.OffsetAt(s),
				Value:       row[s],
				IngestedAt:  ingestedAt,
			})
		}
	}
	return samples
}

// Stats returns a snapshot of the counters.
func (c *Coordinator) Stats() StatsSnapshot {
	return StatsSnapshot{
		ChunksReceived:  c.stats.ChunksReceived.Load(),
		ChunksAccepted:  c.stats.ChunksAccepted.Load(),
		ChunksDuplicate: c.stats.ChunksDuplicate.Load(),
		ChunksRejected:  c.stats.ChunksRejected.Load(),
		ChunksOverload:  c.stats.ChunksOverload.Load(),
		SamplesWritten:  c.stats.SamplesWritten.Load(),
		Errors:          c.stats.Errors.Load(),
		WriteSeconds:    time.Duration(c.stats.WriteNanos.Load()).Seconds(),
	}
}

// PatientRule returns the rule used to derive patient ids.
func (c *Coordinator) PatientRule() types.PatientRule {
	return c.rule
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func allFinite(row []float64) bool {
	for _, v := range row {
		if !finite(v) {
			return false
		}
	}
	return true
}
