// Package aggregate computes per-channel summary statistics over a stream
// of values, with optional quantiles from a DDSketch.
package aggregate

import (
	"math"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/eegstore/internal/storage/types"
)

// DefaultAccuracy is the DDSketch relative accuracy used when none is given.
const DefaultAccuracy = 0.01

// ChannelAggregate maintains running statistics for one channel.
// It is not safe for concurrent use.
type ChannelAggregate struct {
	channel string

	// Running statistics
	count int64
	sum   float64
	min   float64
	max   float64

	// DDSketch for percentiles (nil if disabled)
	sketch *ddsketch.DDSketch
}

// New creates an aggregate without quantiles.
func New(channel string) *ChannelAggregate {
	return &ChannelAggregate{
		channel: channel,
		min:     math.MaxFloat64,
		max:     -math.MaxFloat64,
	}
}

// NewWithAccuracy creates an aggregate whose quantiles are within the
// given relative accuracy.
func NewWithAccuracy(channel string, accuracy float64) *ChannelAggregate {
	agg := New(channel)
	if accuracy <= 0 || accuracy >= 1 {
		accuracy = DefaultAccuracy
	}
	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err == nil {
		agg.sketch = sketch
	}
	return agg
}

// Add adds a value to the aggregate.
func (a *ChannelAggregate) Add(value float64) {
	a.count++
	a.sum += value

	if value < a.min {
		a.min = value
	}
	if value > a.max {
		a.max = value
	}

	if a.sketch != nil {
		// Only rejects values outside the mapping's indexable range.
		_ = a.sketch.Add(value)
	}
}

// Count returns the number of values added.
func (a *ChannelAggregate) Count() int64 {
	return a.count
}

// IsEmpty returns true if no values have been added.
func (a *ChannelAggregate) IsEmpty() bool {
	return a.count == 0
}

// Channel returns the channel label.
func (a *ChannelAggregate) Channel() string {
	return a.channel
}

// Result returns the statistics. Percentiles are set only when a sketch
// is present and holds data.
func (a *ChannelAggregate) Result() types.ChannelStats {
	result := types.ChannelStats{Count: a.count}

	if a.count > 0 {
		result.Mean = a.sum / float64(a.count)
		result.Min = a.min
		result.Max = a.max
	}

	if a.sketch != nil && a.count > 0 {
		qs, err := a.sketch.GetValuesAtQuantiles([]float64{0.50, 0.95, 0.99})
		if err == nil {
			result.SetPercentiles(clamp(qs[0], a.min, a.max), clamp(qs[1], a.min, a.max), clamp(qs[2], a.min, a.max))
		}
	}

	return result
}

// Merge combines another aggregate of the same channel into this one.
func (a *ChannelAggregate) Merge(other *ChannelAggregate) error {
	if other == nil || other.count == 0 {
		return nil
	}

	a.count += other.count
	a.sum += other.sum

	if other.min < a.min {
		a.min = other.min
	}
	if other.max > a.max {
		a.max = other.max
	}

	if a.sketch != nil && other.sketch != nil {
		return a.sketch.MergeWith(other.sketch)
	}
	return nil
}

// clamp keeps sketch estimates inside the observed range; the sketch only
// guarantees relative accuracy.
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
