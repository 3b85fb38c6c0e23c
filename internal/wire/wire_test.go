package wire

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/xtxerr/eegstore/internal/errors"
)

func sampleMessage() *ChunkMessage {
	start := 5.0
	return &ChunkMessage{
		RecordingID:   "chb01_03.edf",
		SequenceIndex: 5,
		Channels:      []string{"A", "B"},
		Data:          [][]float64{{1, 2}, {3, 4}},
		ChunkStart:    &start,
		SamplingRate:  2,
		Timestamp:     1700000000.5,
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	in := sampleMessage()

	out, err := Unmarshal(Marshal(in), 0)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if out.RecordingID != in.RecordingID || out.SequenceIndex != in.SequenceIndex {
		t.Errorf("identity mismatch: %+v", out)
	}
	if len(out.Channels) != 2 || out.Channels[0] != "A" || out.Channels[1] != "B" {
		t.Errorf("channels mismatch: %v", out.Channels)
	}
	if len(out.Data) != 2 || out.Data[1][1] != 4 {
		t.Errorf("data mismatch: %v", out.Data)
	}
	if out.ChunkStart == nil || *out.ChunkStart != 5.0 {
		t.Errorf("chunk start mismatch: %v", out.ChunkStart)
	}
	if out.SamplingRate != 2 || out.Timestamp != in.Timestamp {
		t.Errorf("rate/timestamp mismatch: %+v", out)
	}
}

func TestChunkStartPresence(t *testing.T) {
	m := sampleMessage()
	m.ChunkStart = nil

	out, err := Unmarshal(Marshal(m), 0)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.ChunkStart != nil {
		t.Errorf("absent start should decode as nil, got %v", *out.ChunkStart)
	}

	zero := 0.0
	m.ChunkStart = &zero
	out, err = Unmarshal(Marshal(m), 0)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.ChunkStart == nil || *out.ChunkStart != 0 {
		t.Error("explicit zero start must survive encoding")
	}
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	b := Marshal(sampleMessage())
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = protowire.AppendTag(b, 100, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)

	out, err := Unmarshal(b, 0)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.RecordingID != "chb01_03.edf" {
		t.Errorf("unexpected recording %q", out.RecordingID)
	}
}

func TestUnmarshalUnpackedValues(t *testing.T) {
	var row []byte
	for _, v := range []float64{1.5, -2.5} {
		row = protowire.AppendTag(row, fieldChannelValues, protowire.Fixed64Type)
		row = protowire.AppendFixed64(row, math.Float64bits(v))
	}
	var b []byte
	b = protowire.AppendTag(b, fieldChannels, protowire.BytesType)
	b = protowire.AppendString(b, "A")
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	b = protowire.AppendBytes(b, row)

	out, err := Unmarshal(b, 0)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(out.Data) != 1 || len(out.Data[0]) != 2 || out.Data[0][1] != -2.5 {
		t.Errorf("unexpected data %v", out.Data)
	}
}

func TestUnmarshalErrors(t *testing.T) {
	b := Marshal(sampleMessage())

	if _, err := Unmarshal(b[:len(b)-3], 0); !errors.Is(err, errors.ErrMalformedBody) {
		t.Errorf("truncated input: expected ErrMalformedBody, got %v", err)
	}

	if _, err := Unmarshal(b, 10); !errors.Is(err, errors.ErrBodyTooLarge) {
		t.Errorf("oversized input: expected ErrBodyTooLarge, got %v", err)
	}
}

func TestCanonicalBytesDeterministic(t *testing.T) {
	a := CanonicalBytes([]string{"A", "B"}, [][]float64{{1, 2}, {3, 4}})
	b := CanonicalBytes([]string{"A", "B"}, [][]float64{{1, 2}, {3, 4}})
	if !bytes.Equal(a, b) {
		t.Error("canonical bytes differ for equal input")
	}

	swapped := CanonicalBytes([]string{"B", "A"}, [][]float64{{3, 4}, {1, 2}})
	if bytes.Equal(a, swapped) {
		t.Error("channel order must affect canonical bytes")
	}

	changed := CanonicalBytes([]string{"A", "B"}, [][]float64{{1, 2}, {3, 4.0000001}})
	if bytes.Equal(a, changed) {
		t.Error("value change must affect canonical bytes")
	}
}

func TestToChunkDefaults(t *testing.T) {
	tests := []struct {
		name      string
		msg       ChunkMessage
		wantRate  float64
		wantStart float64
	}{
		{
			name:      "one second chunks by default",
			msg:       ChunkMessage{SequenceIndex: 3, Data: [][]float64{{1, 2, 3, 4}}},
			wantRate:  4,
			wantStart: 3,
		},
		{
			name:      "start from index and rate",
			msg:       ChunkMessage{SequenceIndex: 2, SamplingRate: 8, Data: [][]float64{{1, 2, 3, 4}}},
			wantRate:  8,
			wantStart: 1,
		},
		{
			name:      "explicit start wins",
			msg:       ChunkMessage{SequenceIndex: 9, SamplingRate: 2, ChunkStart: ptr(5), Data: [][]float64{{1, 2}}},
			wantRate:  2,
			wantStart: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.msg.ToChunk()
			if c.SamplingRate != tt.wantRate {
				t.Errorf("rate: expected %v, got %v", tt.wantRate, c.SamplingRate)
			}
			if c.StartOffset != tt.wantStart {
				t.Errorf("start: expected %v, got %v", tt.wantStart, c.StartOffset)
			}
		})
	}
}

func TestJSONShape(t *testing.T) {
	body := `{"recording_id":"chb01_03.edf","chunk_index":0,"channels":["FP1-F7"],"data":[[0.5,1.5]]}`
	var m ChunkMessage
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		t.Fatalf("json: %v", err)
	}
	if m.ChunkStart != nil {
		t.Error("absent chunk_start_sec should stay nil")
	}
	c := m.ToChunk()
	if c.SamplingRate != 2 || c.StartOffset != 0 || c.SampleCount() != 2 {
		t.Errorf("unexpected chunk %+v", c)
	}
}

func TestSnappy(t *testing.T) {
	raw := Marshal(sampleMessage())
	compressed := Compress(raw)

	out, err := Decompress(compressed, EncodingSnappy, 0)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, raw) {
		t.Error("snappy round trip mismatch")
	}

	if _, err := Decompress(compressed, EncodingSnappy, 4); !errors.Is(err, errors.ErrBodyTooLarge) {
		t.Errorf("expected ErrBodyTooLarge, got %v", err)
	}
	if _, err := Decompress([]byte{0xff, 0xff, 0xff}, EncodingSnappy, 0); !errors.Is(err, errors.ErrMalformedBody) {
		t.Errorf("expected ErrMalformedBody, got %v", err)
	}
	if _, err := Decompress(raw, "gzip", 0); !errors.Is(err, errors.ErrUnsupportedMediaType) {
		t.Errorf("expected ErrUnsupportedMediaType, got %v", err)
	}
	if out, _ := Decompress(raw, "", 0); !bytes.Equal(out, raw) {
		t.Error("identity should pass through")
	}
}

func TestErrorBody(t *testing.T) {
	body := NewErrorFromErr("req-1", errors.NewRecordingNotFound("p", "r"))
	if body.Code != errors.CodeNotFound || body.Name != "NotFound" {
		t.Errorf("unexpected body %+v", body)
	}
	if !errors.Is(body.Err(), errors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", body.Err())
	}
}

func ptr(f float64) *float64 { return &f }
