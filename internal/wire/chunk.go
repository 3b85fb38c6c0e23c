package wire

import (
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/storage/types"
)

// Field numbers of the Chunk message.
const (
	fieldRecordingID     protowire.Number = 1
	fieldSequenceIndex   protowire.Number = 2
	fieldChannels        protowire.Number = 3
	fieldData            protowire.Number = 4
	fieldChunkStart      protowire.Number = 5
	fieldSamplingRate    protowire.Number = 6
	fieldTimestamp       protowire.Number = 7
	fieldSamplesPerChunk protowire.Number = 8

	fieldChannelValues protowire.Number = 1
)

// ChunkMessage is the ingest payload as sent by producers.
type ChunkMessage struct {
	RecordingID   string      `json:"recording_id"`
	SequenceIndex int64       `json:"chunk_index"`
	Channels      []string    `json:"channels"`
	Data          [][]float64 `json:"data"`

	// ChunkStart is nil when the producer relies on the sequence index.
	ChunkStart      *float64 `json:"chunk_start_sec,omitempty"`
	SamplingRate    float64  `json:"sampling_rate,omitempty"`
	SamplesPerChunk int64    `json:"samples_per_chunk,omitempty"`

	// Timestamp is the producer wall clock in Unix seconds.
	Timestamp float64 `json:"timestamp,omitempty"`
}

// ToChunk resolves producer defaults and returns the storage chunk.
//
// A missing sampling rate means one-second chunks, so the rate equals the
// samples per channel. A missing chunk start is sequence_index x chunk
// duration. Shape and value checks happen in the ingestion coordinator.
func (m *ChunkMessage) ToChunk() types.Chunk {
	c := types.Chunk{
		RecordingID:     m.RecordingID,
		SequenceIndex:   m.SequenceIndex,
		Channels:        m.Channels,
		Data:            m.Data,
		SamplingRate:    m.SamplingRate,
		SamplesPerChunk: int(m.SamplesPerChunk),
	}

	samples := c.SamplesPerChannel()
	if c.SamplingRate == 0 && samples > 0 {
		c.SamplingRate = float64(samples)
	}

	if m.ChunkStart != nil {
		c.StartOffset = *m.ChunkStart
	} else if c.SamplingRate > 0 {
		c.StartOffset = float64(m.SequenceIndex) * float64(samples) / c.SamplingRate
	}

	if m.Timestamp > 0 && !math.IsInf(m.Timestamp, 0) {
		sec, frac := math.Modf(m.Timestamp)
		c.ProducedAt = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}

	return c
}

// FromChunk builds a message that reproduces c exactly, with an explicit start.
func FromChunk(c types.Chunk) *ChunkMessage {
	start := c.StartOffset
	m := &ChunkMessage{
		RecordingID:     c.RecordingID,
		SequenceIndex:   c.SequenceIndex,
		Channels:        c.Channels,
		Data:            c.Data,
		ChunkStart:      &start,
		SamplingRate:    c.SamplingRate,
		SamplesPerChunk: int64(c.SamplesPerChunk),
	}
	if !c.ProducedAt.IsZero() {
		m.Timestamp = float64(c.ProducedAt.UnixNano()) / 1e9
	}
	return m
}

// =============================================================================
// Protobuf Encoding
// =============================================================================

// Marshal encodes m in protobuf wire format.
func Marshal(m *ChunkMessage) []byte {
	b := make([]byte, 0, 64+sizeHint(m.Data))

	if m.RecordingID != "" {
		b = protowire.AppendTag(b, fieldRecordingID, protowire.BytesType)
		b = protowire.AppendString(b, m.RecordingID)
	}
	if m.SequenceIndex != 0 {
		b = protowire.AppendTag(b, fieldSequenceIndex, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.SequenceIndex))
	}
	b = appendSamples(b, m.Channels, m.Data)
	if m.ChunkStart != nil {
		b = protowire.AppendTag(b, fieldChunkStart, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(*m.ChunkStart))
	}
	if m.SamplingRate != 0 {
		b = protowire.AppendTag(b, fieldSamplingRate, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(m.SamplingRate))
	}
	if m.Timestamp != 0 {
		b = protowire.AppendTag(b, fieldTimestamp, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(m.Timestamp))
	}
	if m.SamplesPerChunk != 0 {
		b = protowire.AppendTag(b, fieldSamplesPerChunk, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.SamplesPerChunk))
	}
	return b
}

// CanonicalBytes returns the protobuf encoding of the channels and data
// fields alone. It is the input of the chunk fingerprint, so identical
// sample content hashes identically whatever transport delivered it.
func CanonicalBytes(channels []string, data [][]float64) []byte {
	return appendSamples(make([]byte, 0, 16+sizeHint(data)), channels, data)
}

func appendSamples(b []byte, channels []string, data [][]float64) []byte {
	for _, ch := range channels {
		b = protowire.AppendTag(b, fieldChannels, protowire.BytesType)
		b = protowire.AppendString(b, ch)
	}
	for _, row := range data {
		b = protowire.AppendTag(b, fieldData, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeChannelData(row))
	}
	return b
}

func encodeChannelData(values []float64) []byte {
	if len(values) == 0 {
		return nil
	}
	packed := make([]byte, 0, 8*len(values))
	for _, v := range values {
		packed = protowire.AppendFixed64(packed, math.Float64bits(v))
	}
	b := make([]byte, 0, len(packed)+protowire.SizeVarint(uint64(len(packed)))+1)
	b = protowire.AppendTag(b, fieldChannelValues, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

func sizeHint(data [][]float64) int {
	n := 0
	for _, row := range data {
		n += 8*len(row) + 8
	}
	return n
}

// Unmarshal decodes a protobuf Chunk. Unknown fields are skipped.
// maxSize <= 0 disables the size check.
func Unmarshal(b []byte, maxSize int) (*ChunkMessage, error) {
	if maxSize > 0 && len(b) > maxSize {
		return nil, errors.Wrapf(errors.ErrBodyTooLarge, "chunk message of %d bytes exceeds %d", len(b), maxSize)
	}

	m := &ChunkMessage{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, malformed("tag", n)
		}
		b = b[n:]

		switch {
		case num == fieldRecordingID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, malformed("recording_id", n)
			}
			m.RecordingID = v
			b = b[n:]

		case num == fieldSequenceIndex && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, malformed("sequence_index", n)
			}
			m.SequenceIndex = int64(v)
			b = b[n:]

		case num == fieldChannels && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, malformed("channels", n)
			}
			m.Channels = append(m.Channels, v)
			b = b[n:]

		case num == fieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, malformed("data", n)
			}
			row, err := decodeChannelData(v)
			if err != nil {
				return nil, err
			}
			m.Data = append(m.Data, row)
			b = b[n:]

		case num == fieldChunkStart && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, malformed("chunk_start_sec", n)
			}
			start := math.Float64frombits(v)
			m.ChunkStart = &start
			b = b[n:]

		case num == fieldSamplingRate && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, malformed("sampling_rate", n)
			}
			m.SamplingRate = math.Float64frombits(v)
			b = b[n:]

		case num == fieldTimestamp && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, malformed("timestamp", n)
			}
			m.Timestamp = math.Float64frombits(v)
			b = b[n:]

		case num == fieldSamplesPerChunk && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, malformed("samples_per_chunk", n)
			}
			m.SamplesPerChunk = int64(v)
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, malformed("unknown field", n)
			}
			b = b[n:]
		}
	}
	return m, nil
}

// decodeChannelData accepts both packed and unpacked encodings of values.
func decodeChannelData(b []byte) ([]float64, error) {
	values := make([]float64, 0, len(b)/8)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, malformed("channel data tag", n)
		}
		b = b[n:]

		switch {
		case num == fieldChannelValues && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, malformed("packed values", n)
			}
			if len(packed)%8 != 0 {
				return nil, errors.Wrap(errors.ErrMalformedBody, "packed values length is not a multiple of 8")
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeFixed64(packed)
				values = append(values, math.Float64frombits(v))
				packed = packed[m:]
			}
			b = b[n:]

		case num == fieldChannelValues && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, malformed("value", n)
			}
			values = append(values, math.Float64frombits(v))
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, malformed("channel data field", n)
			}
			b = b[n:]
		}
	}
	return values, nil
}

func malformed(what string, n int) error {
	return errors.Wrapf(errors.ErrMalformedBody, "decode %s: %v", what, protowire.ParseError(n))
}
