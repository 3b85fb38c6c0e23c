package fingerprint

import (
	"testing"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/storage/types"
)

func TestAlgorithms(t *testing.T) {
	tests := []struct {
		algo     string
		expected string
	}{
		{"", SHA256},
		{SHA256, SHA256},
		{BLAKE2b256, BLAKE2b256},
	}

	for _, tt := range tests {
		h, err := New(tt.algo)
		if err != nil {
			t.Fatalf("New(%q): %v", tt.algo, err)
		}
		if h.Algorithm() != tt.expected {
			t.Errorf("New(%q): expected %s, got %s", tt.algo, tt.expected, h.Algorithm())
		}

		sum := h.Sum([]string{"A"}, [][]float64{{1, 2, 3}})
		if len(sum) != HexLen {
			t.Errorf("%s: expected %d hex chars, got %d", tt.expected, HexLen, len(sum))
		}
	}

	if _, err := New("md5"); !errors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestDeterministic(t *testing.T) {
	h, _ := New(SHA256)

	c := &types.Chunk{Channels: []string{"A", "B"}, Data: [][]float64{{1, 2}, {3, 4}}}
	first := h.Chunk(c)
	second := h.Sum([]string{"A", "B"}, [][]float64{{1, 2}, {3, 4}})
	if first != second {
		t.Error("same content must hash the same")
	}

	if h.Sum([]string{"A", "B"}, [][]float64{{1, 2}, {3, 5}}) == first {
		t.Error("different values must hash differently")
	}
	if h.Sum([]string{"A", "C"}, [][]float64{{1, 2}, {3, 4}}) == first {
		t.Error("different channel labels must hash differently")
	}
}

func TestAlgorithmsDiffer(t *testing.T) {
	s, _ := New(SHA256)
	b, _ := New(BLAKE2b256)

	channels := []string{"FP1-F7"}
	data := [][]float64{{0.1, 0.2}}
	if s.Sum(channels, data) == b.Sum(channels, data) {
		t.Error("sha256 and blake2b-256 should not agree")
	}
}
