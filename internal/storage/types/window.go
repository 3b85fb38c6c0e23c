package types

import "math"

// WindowQuery selects samples with offset in [Start, End] inclusive.
// Empty Channels means all channels.
type WindowQuery struct {
	PatientID   string
	RecordingID string
	Start       float64
	End         float64
	Channels    []string
	WithStats   bool
}

// Empty reports whether the range can contain no samples.
func (q *WindowQuery) Empty() bool {
	return q.Start > q.End
}

// Finite reports whether both bounds are finite numbers.
func (q *WindowQuery) Finite() bool {
	return isFinite(q.Start) && isFinite(q.End)
}

// Window is the result of a window query: one series per channel, channels
// ordered by name, each series ascending by offset.
type Window struct {
	PatientID   string          `json:"patient_id"`
	RecordingID string          `json:"recording_id"`
	Start       float64         `json:"start_sec"`
	End         float64         `json:"end_sec"`
	Channels    []ChannelSeries `json:"channels"`
	SampleCount int             `json:"sample_count"`
}

// ChannelSeries holds one channel's points as parallel slices.
type ChannelSeries struct {
	Channel string        `json:"channel"`
	Offsets []float64     `json:"timestamps"`
	Values  []float64     `json:"values"`
	Stats   *ChannelStats `json:"stats,omitempty"`
}

// Len returns the number of points.
func (s *ChannelSeries) Len() int {
	return len(s.Offsets)
}

// ChannelStats summarizes the values of one channel inside a window.
type ChannelStats struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`

	// Percentiles (nil if the sketch was unavailable)
	P50 *float64 `json:"p50,omitempty"`
	P95 *float64 `json:"p95,omitempty"`
	P99 *float64 `json:"p99,omitempty"`
}

// HasPercentiles returns true if percentile data is available.
func (s *ChannelStats) HasPercentiles() bool {
	return s.P50 != nil
}

// SetPercentiles sets all percentile values.
func (s *ChannelStats) SetPercentiles(p50, p95, p99 float64) {
	s.P50 = &p50
	s.P95 = &p95
	s.P99 = &p99
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
