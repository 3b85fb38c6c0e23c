package aggregate

import (
	"sort"

	"github.com/xtxerr/eegstore/internal/storage/types"
)

// Set keeps one aggregate per channel for a single window.
type Set struct {
	accuracy    float64
	percentiles bool

	// Active aggregates: channel -> aggregate
	aggregates map[string]*ChannelAggregate

	processed int64
}

// NewSet creates a set. With percentiles disabled only count, min, max
// and mean are computed.
func NewSet(percentiles bool, accuracy float64) *Set {
	return &Set{
		accuracy:    accuracy,
		percentiles: percentiles,
		aggregates:  make(map[string]*ChannelAggregate),
	}
}

// Process adds one value of a channel.
func (s *Set) Process(channel string, value float64) {
	agg, ok := s.aggregates[channel]
	if !ok {
		agg = s.createAggregate(channel)
		s.aggregates[channel] = agg
	}
	agg.Add(value)
	s.processed++
}

// ProcessSeries adds every value of a series.
func (s *Set) ProcessSeries(channel string, values []float64) {
	for _, v := range values {
		s.Process(channel, v)
	}
}

// Result returns the stats of one channel and whether it has any values.
func (s *Set) Result(channel string) (*types.ChannelStats, bool) {
	agg, ok := s.aggregates[channel]
	if !ok || agg.IsEmpty() {
		return nil, false
	}
	r := agg.Result()
	return &r, true
}

// Channels returns the channels seen, sorted.
func (s *Set) Channels() []string {
	out := make([]string, 0, len(s.aggregates))
	for ch := range s.aggregates {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Processed returns the number of values added across all channels.
func (s *Set) Processed() int64 {
	return s.processed
}

func (s *Set) createAggregate(channel string) *ChannelAggregate {
	if s.percentiles {
		return NewWithAccuracy(channel, s.accuracy)
	}
	return New(channel)
}
