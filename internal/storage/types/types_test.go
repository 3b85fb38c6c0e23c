package types

import (
	"math"
	"testing"

	"github.com/xtxerr/eegstore/internal/errors"
)

func TestChunkOffsets(t *testing.T) {
	c := Chunk{
		RecordingID:  "p1_r1",
		Channels:     []string{"A", "B"},
		Data:         [][]float64{{1, 2}, {3, 4}},
		StartOffset:  5.0,
		SamplingRate: 2,
	}

	if c.SamplesPerChannel() != 2 {
		t.Errorf("expected 2 samples per channel, got %d", c.SamplesPerChannel())
	}
	if c.SampleCount() != 4 {
		t.Errorf("expected 4 samples, got %d", c.SampleCount())
	}
	if c.OffsetAt(0) != 5.0 || c.OffsetAt(1) != 5.5 {
		t.Errorf("unexpected offsets %v %v", c.OffsetAt(0), c.OffsetAt(1))
	}
	if c.EndOffset() != 6.0 {
		t.Errorf("expected end 6.0, got %v", c.EndOffset())
	}
}

func TestChunkDeclaredSamples(t *testing.T) {
	c := Chunk{Data: [][]float64{{1, 2, 3}}, SamplesPerChunk: 4}
	if c.SamplesPerChannel() != 4 {
		t.Errorf("declared length should win, got %d", c.SamplesPerChannel())
	}

	var empty Chunk
	if empty.SamplesPerChannel() != 0 {
		t.Errorf("expected 0 for empty chunk")
	}
}

func TestChunkKeyString(t *testing.T) {
	tests := []struct {
		key      ChunkKey
		expected string
	}{
		{ChunkKey{"chb01_03.edf", 5}, "chb01_03.edf@5"},
		{ChunkKey{"r", 0.1}, "r@0.1"},
		{ChunkKey{"r", 1.0000000000000002}, "r@1.0000000000000002"},
	}

	for _, tt := range tests {
		if tt.key.String() != tt.expected {
			t.Errorf("expected %s, got %s", tt.expected, tt.key.String())
		}
	}

	if (ChunkKey{"r", 1}).String() == (ChunkKey{"r", 1.0000000000000002}).String() {
		t.Error("distinct starts must render differently")
	}
}

func TestWindowQueryChecks(t *testing.T) {
	q := WindowQuery{Start: 3, End: 1}
	if !q.Empty() {
		t.Error("start > end should be empty")
	}

	q = WindowQuery{Start: 1, End: 1}
	if q.Empty() {
		t.Error("start == end is a closed single-point window")
	}

	q = WindowQuery{Start: math.NaN(), End: 1}
	if q.Finite() {
		t.Error("NaN bound should not be finite")
	}

	q = WindowQuery{Start: 0, End: math.Inf(1)}
	if q.Finite() {
		t.Error("Inf bound should not be finite")
	}
}

func TestChannelStatsPercentiles(t *testing.T) {
	s := ChannelStats{}

	if s.HasPercentiles() {
		t.Error("expected no percentiles")
	}

	s.SetPercentiles(50.0, 95.0, 99.0)

	if !s.HasPercentiles() {
		t.Error("expected percentiles")
	}
	if *s.P95 != 95.0 {
		t.Errorf("expected P95=95.0, got %v", *s.P95)
	}
}

func TestPrefixRule(t *testing.T) {
	tests := []struct {
		rule      PrefixRule
		recording string
		expected  string
		wantErr   bool
	}{
		{DefaultPatientRule, "chb01_03.edf", "chb01", false},
		{DefaultPatientRule, "chb01_03_extra", "chb01", false},
		{DefaultPatientRule, "single", "single", false},
		{DefaultPatientRule, "_orphan", "", true},
		{PrefixRule{Separator: "-"}, "p7-night", "p7", false},
		{PrefixRule{}, "a_b", "a", false},
	}

	for _, tt := range tests {
		got, err := tt.rule.PatientID(tt.recording)
		if tt.wantErr {
			if !errors.Is(err, errors.ErrInvalidName) {
				t.Errorf("%s: expected ErrInvalidName, got %v", tt.recording, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.recording, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("%s: expected %s, got %s", tt.recording, tt.expected, got)
		}
	}
}

func TestPatientRuleFunc(t *testing.T) {
	var rule PatientRule = PatientRuleFunc(func(string) (string, error) {
		return "fixed", nil
	})
	got, err := rule.PatientID("anything")
	if err != nil || got != "fixed" {
		t.Errorf("expected fixed, got %q %v", got, err)
	}
}
