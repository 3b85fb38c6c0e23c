package aggregate

import (
	"math"
	"testing"
)

func TestChannelAggregate_Basic(t *testing.T) {
	agg := New("FP1-F7")

	if !agg.IsEmpty() {
		t.Error("new aggregate should be empty")
	}

	agg.Add(10.0)
	agg.Add(20.0)
	agg.Add(30.0)

	if agg.Count() != 3 {
		t.Errorf("expected count=3, got %d", agg.Count())
	}

	result := agg.Result()

	if result.Count != 3 {
		t.Errorf("expected count=3, got %d", result.Count)
	}
	if result.Min != 10.0 {
		t.Errorf("expected min=10, got %f", result.Min)
	}
	if result.Max != 30.0 {
		t.Errorf("expected max=30, got %f", result.Max)
	}
	if math.Abs(result.Mean-20.0) > 0.001 {
		t.Errorf("expected mean=20, got %f", result.Mean)
	}
	if result.HasPercentiles() {
		t.Error("should not have percentiles")
	}
}

func TestChannelAggregate_Empty(t *testing.T) {
	result := NewWithAccuracy("A", 0.01).Result()

	if result.Count != 0 || result.Min != 0 || result.Max != 0 || result.Mean != 0 {
		t.Errorf("expected zero stats, got %+v", result)
	}
	if result.HasPercentiles() {
		t.Error("empty aggregate should not have percentiles")
	}
}

func TestChannelAggregate_Percentiles(t *testing.T) {
	agg := NewWithAccuracy("A", 0.01)

	// 1..1000
	for i := 1; i <= 1000; i++ {
		agg.Add(float64(i))
	}

	result := agg.Result()
	if !result.HasPercentiles() {
		t.Fatal("expected percentiles")
	}

	tests := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"p50", *result.P50, 500},
		{"p95", *result.P95, 950},
		{"p99", *result.P99, 990},
	}
	for _, tt := range tests {
		// 1% relative accuracy plus rank rounding
		if math.Abs(tt.got-tt.expected)/tt.expected > 0.02 {
			t.Errorf("%s: expected ~%v, got %v", tt.name, tt.expected, tt.got)
		}
	}
}

func TestChannelAggregate_NegativeValues(t *testing.T) {
	agg := NewWithAccuracy("A", 0.01)

	// Signed microvolt-like values
	for _, v := range []float64{-120.5, -30, 0, 15, 80.25} {
		agg.Add(v)
	}

	result := agg.Result()
	if result.Min != -120.5 || result.Max != 80.25 {
		t.Errorf("unexpected range %v..%v", result.Min, result.Max)
	}
	if !result.HasPercentiles() {
		t.Fatal("expected percentiles")
	}
	if *result.P50 < result.Min || *result.P99 > result.Max {
		t.Errorf("percentiles outside observed range: %+v", result)
	}
}

func TestChannelAggregate_Merge(t *testing.T) {
	a := NewWithAccuracy("A", 0.01)
	b := NewWithAccuracy("A", 0.01)

	a.Add(1)
	a.Add(2)
	b.Add(10)

	if err := a.Merge(b); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := a.Merge(nil); err != nil {
		t.Fatalf("Merge nil: %v", err)
	}

	result := a.Result()
	if result.Count != 3 || result.Max != 10 || result.Min != 1 {
		t.Errorf("unexpected merged stats %+v", result)
	}
}

func TestNewWithAccuracy_OutOfRange(t *testing.T) {
	agg := NewWithAccuracy("A", 5)
	agg.Add(1)
	if !agg.Result().HasPercentiles() {
		t.Error("invalid accuracy should fall back to the default")
	}
}

func TestSet(t *testing.T) {
	s := NewSet(true, 0.01)

	s.ProcessSeries("B", []float64{1, 2, 3})
	s.Process("A", 7)

	if s.Processed() != 4 {
		t.Errorf("expected 4 processed, got %d", s.Processed())
	}

	chans := s.Channels()
	if len(chans) != 2 || chans[0] != "A" || chans[1] != "B" {
		t.Errorf("expected sorted channels [A B], got %v", chans)
	}

	stats, ok := s.Result("B")
	if !ok {
		t.Fatal("expected stats for B")
	}
	if stats.Count != 3 || stats.Mean != 2 || !stats.HasPercentiles() {
		t.Errorf("unexpected stats %+v", stats)
	}

	if _, ok := s.Result("Z"); ok {
		t.Error("unknown channel should have no stats")
	}
}

func TestSet_WithoutPercentiles(t *testing.T) {
	s := NewSet(false, 0)
	s.Process("A", 1)

	stats, ok := s.Result("A")
	if !ok {
		t.Fatal("expected stats")
	}
	if stats.HasPercentiles() {
		t.Error("percentiles should be disabled")
	}
}
