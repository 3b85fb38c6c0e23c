package types

import (
	"strconv"
	"time"
)

// Chunk is a bounded, time-contiguous batch of multi-channel samples
// submitted in one ingestion call. Data is indexed [channel][sample] and
// Channels[i] names Data[i].
type Chunk struct {
	RecordingID   string
	SequenceIndex int64
	Channels      []string
	Data          [][]float64

	// StartOffset is the offset in seconds of the first sample.
	StartOffset float64

	// SamplingRate is samples per second per channel.
	SamplingRate float64

	// SamplesPerChunk is the declared row length. 0 means the length of
	// the first row.
	SamplesPerChunk int

	// ProducedAt is the producer's wall clock, if sent. Informational only.
	ProducedAt time.Time
}

// Key returns the dedup key of the chunk.
func (c *Chunk) Key() ChunkKey {
	return ChunkKey{RecordingID: c.RecordingID, Start: c.StartOffset}
}

// SamplesPerChannel returns the declared or inferred row length.
func (c *Chunk) SamplesPerChannel() int {
	if c.SamplesPerChunk > 0 {
		return c.SamplesPerChunk
	}
	if len(c.Data) == 0 {
		return 0
	}
	return len(c.Data[0])
}

// SampleCount returns channels x samples per channel.
func (c *Chunk) SampleCount() int {
	return len(c.Channels) * c.SamplesPerChannel()
}

// OffsetAt returns the time offset of sample index s.
func (c *Chunk) OffsetAt(s int) float64 {
	return c.StartOffset + float64(s)/c.SamplingRate
}

// EndOffset returns start + samples/rate, the offset just past the last sample.
func (c *Chunk) EndOffset() float64 {
	return c.StartOffset + float64(c.SamplesPerChannel())/c.SamplingRate
}

// ChunkKey identifies a chunk for deduplication.
type ChunkKey struct {
	RecordingID string
	Start       float64
}

// String renders the key with the shortest exact float representation,
// so distinct starts never collide.
func (k ChunkKey) String() string {
	return k.RecordingID + "@" + strconv.FormatFloat(k.Start, 'g', -1, 64)
}
