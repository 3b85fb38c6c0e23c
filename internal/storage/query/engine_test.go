package query

import (
	"context"
	"math"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/storage/config"
	"github.com/xtxerr/eegstore/internal/storage/ingestion"
	"github.com/xtxerr/eegstore/internal/storage/types"
	"github.com/xtxerr/eegstore/internal/store"
)

type point struct {
	channel       string
	offset, value float64
}

// sliceScanner serves points from memory with the store's ordering.
type sliceScanner struct {
	points []point
	calls  int
	block  bool
}

func (s *sliceScanner) ScanWindow(ctx context.Context, q *types.WindowQuery, fn store.PointFunc) error {
	s.calls++
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}

	want := map[string]bool{}
	for _, ch := range q.Channels {
		want[ch] = true
	}

	pts := append([]point(nil), s.points...)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].channel != pts[j].channel {
			return pts[i].channel < pts[j].channel
		}
		return pts[i].offset < pts[j].offset
	})
	for _, p := range pts {
		if p.offset < q.Start || p.offset > q.End {
			continue
		}
		if len(want) > 0 && !want[p.channel] {
			continue
		}
		if err := fn(p.channel, p.offset, p.value); err != nil {
			return err
		}
	}
	return nil
}

func abPoints() []point {
	return []point{
		{"B", 5.0, 3.0}, {"A", 5.5, 2.0}, {"B", 5.5, 4.0}, {"A", 5.0, 1.0},
	}
}

func TestQueryGroupsAndOrders(t *testing.T) {
	e := New(nil, &sliceScanner{points: abPoints()})

	w, err := e.Query(context.Background(), types.WindowQuery{
		PatientID: "chb01", RecordingID: "chb01_03.edf", Start: 5.0, End: 5.5,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if w.SampleCount != 4 || len(w.Channels) != 2 {
		t.Fatalf("expected 2 channels with 4 samples, got %+v", w)
	}
	if w.Channels[0].Channel != "A" || w.Channels[1].Channel != "B" {
		t.Errorf("channels not ordered by name: %s, %s", w.Channels[0].Channel, w.Channels[1].Channel)
	}
	a := w.Channels[0]
	if a.Offsets[0] != 5.0 || a.Offsets[1] != 5.5 || a.Values[0] != 1.0 || a.Values[1] != 2.0 {
		t.Errorf("unexpected series A: %+v", a)
	}
	if a.Stats != nil {
		t.Error("stats not requested")
	}
}

func TestQueryChannelFilter(t *testing.T) {
	e := New(nil, &sliceScanner{points: abPoints()})

	w, err := e.Query(context.Background(), types.WindowQuery{
		PatientID: "chb01", RecordingID: "chb01_03.edf", Start: 5.0, End: 5.5, Channels: []string{"A"},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(w.Channels) != 1 || w.Channels[0].Len() != 2 {
		t.Errorf("expected only channel A with 2 points, got %+v", w.Channels)
	}
}

func TestQueryInvertedRangeIsEmpty(t *testing.T) {
	sc := &sliceScanner{points: abPoints()}
	e := New(nil, sc)

	w, err := e.Query(context.Background(), types.WindowQuery{
		PatientID: "chb01", RecordingID: "chb01_03.edf", Start: 10, End: 5,
	})
	if err != nil {
		t.Fatalf("start > end should not be an error: %v", err)
	}
	if w.SampleCount != 0 || len(w.Channels) != 0 || w.Channels == nil {
		t.Errorf("expected empty, non-nil channel list, got %+v", w)
	}
	if sc.calls != 0 {
		t.Error("inverted range should not reach storage")
	}
}

func TestQueryUnknownRecordingIsEmpty(t *testing.T) {
	e := New(nil, &sliceScanner{})

	w, err := e.Query(context.Background(), types.WindowQuery{
		PatientID: "nobody", RecordingID: "nothing", Start: 0, End: 100,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if w.SampleCount != 0 || len(w.Channels) != 0 {
		t.Errorf("expected empty window, got %+v", w)
	}
	if e.Stats().EmptyResults != 1 {
		t.Errorf("expected 1 empty result, got %d", e.Stats().EmptyResults)
	}
}

func TestQueryValidation(t *testing.T) {
	tests := []struct {
		name string
		q    types.WindowQuery
		want error
	}{
		{"missing patient", types.WindowQuery{RecordingID: "r", End: 1}, errors.ErrInvalidName},
		{"missing recording", types.WindowQuery{PatientID: "p", End: 1}, errors.ErrInvalidName},
		{"NaN start", types.WindowQuery{PatientID: "p", RecordingID: "r", Start: math.NaN(), End: 1}, errors.ErrInvalidRange},
		{"Inf end", types.WindowQuery{PatientID: "p", RecordingID: "r", End: math.Inf(1)}, errors.ErrInvalidRange},
		{"bad channel", types.WindowQuery{PatientID: "p", RecordingID: "r", End: 1, Channels: []string{"a/b"}}, errors.ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(nil, &sliceScanner{})
			_, err := e.Query(context.Background(), tt.q)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestQueryRowCap(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Query.MaxRows = 3

	e := New(cfg, &sliceScanner{points: abPoints()})
	_, err := e.Query(context.Background(), types.WindowQuery{
		PatientID: "chb01", RecordingID: "chb01_03.edf", Start: 0, End: 10,
	})
	if !errors.Is(err, errors.ErrWindowTooLarge) {
		t.Fatalf("expected ErrWindowTooLarge, got %v", err)
	}

	// Exactly at the cap is fine
	cfg.Query.MaxRows = 4
	if _, err := e.Query(context.Background(), types.WindowQuery{
		PatientID: "chb01", RecordingID: "chb01_03.edf", Start: 0, End: 10,
	}); err != nil {
		t.Errorf("4 rows with cap 4 should pass: %v", err)
	}
}

func TestQueryTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Query.Timeout = 20 * time.Millisecond

	e := New(cfg, &sliceScanner{block: true})
	_, err := e.Query(context.Background(), types.WindowQuery{
		PatientID: "p", RecordingID: "r", Start: 0, End: 1,
	})
	if !errors.Is(err, errors.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	if e.Stats().Errors != 1 {
		t.Errorf("expected 1 error, got %d", e.Stats().Errors)
	}
}

func TestQueryStats(t *testing.T) {
	e := New(nil, &sliceScanner{points: abPoints()})

	w, err := e.Query(context.Background(), types.WindowQuery{
		PatientID: "chb01", RecordingID: "chb01_03.edf", Start: 0, End: 10, WithStats: true,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, s := range w.Channels {
		if s.Stats == nil {
			t.Fatalf("channel %s: expected stats", s.Channel)
		}
		if s.Stats.Count != 2 {
			t.Errorf("channel %s: expected count 2, got %d", s.Channel, s.Stats.Count)
		}
		if !s.Stats.HasPercentiles() {
			t.Errorf("channel %s: expected percentiles", s.Channel)
		}
	}
	b := w.Channels[1].Stats
	if b.Min != 3 || b.Max != 4 || b.Mean != 3.5 {
		t.Errorf("unexpected stats for B: %+v", b)
	}
}

// TestQueryAgainstStore ingests through the coordinator and reads back on
// both engines.
func TestQueryAgainstStore(t *testing.T) {
	for _, driver := range []string{store.DriverDuckDB, store.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			scfg := store.DefaultConfig()
			scfg.Driver = driver
			scfg.Path = filepath.Join(t.TempDir(), "eeg.db")
			st, err := store.Open(scfg)
			if err != nil {
				t.Fatalf("open store: %v", err)
			}
			defer st.Close()

			coord, err := ingestion.New(ingestion.Options{Writer: st})
			if err != nil {
				t.Fatalf("ingestion.New: %v", err)
			}
			ctx := context.Background()

			// Four one-second chunks at 4 Hz, written out of order
			for _, seq := range []int64{2, 0, 3, 1} {
				ch := &types.Chunk{
					RecordingID:   "chb01_03.edf",
					SequenceIndex: seq,
					Channels:      []string{"T7", "FP1"},
					Data:          [][]float64{{1, 2, 3, 4}, {5, 6, 7, 8}},
					StartOffset:   float64(seq),
					SamplingRate:  4,
				}
				if _, err := coord.Ingest(ctx, ch); err != nil {
					t.Fatalf("ingest %d: %v", seq, err)
				}
			}

			e := New(nil, st)
			w, err := e.Query(ctx, types.WindowQuery{
				PatientID: "chb01", RecordingID: "chb01_03.edf", Start: 0.75, End: 2.25,
			})
			if err != nil {
				t.Fatalf("Query: %v", err)
			}

			// 0.75, 1.0, ..., 2.25 inclusive = 7 points per channel
			if len(w.Channels) != 2 || w.Channels[0].Channel != "FP1" {
				t.Fatalf("unexpected channels %+v", w.Channels)
			}
			for _, s := range w.Channels {
				if s.Len() != 7 {
					t.Errorf("channel %s: expected 7 points, got %d", s.Channel, s.Len())
				}
				if !sort.Float64sAreSorted(s.Offsets) {
					t.Errorf("channel %s: offsets not ascending", s.Channel)
				}
				if s.Offsets[0] != 0.75 || s.Offsets[len(s.Offsets)-1] != 2.25 {
					t.Errorf("channel %s: bounds not inclusive: %v", s.Channel, s.Offsets)
				}
			}

			// Same window again is stable
			again, err := e.Query(ctx, types.WindowQuery{
				PatientID: "chb01", RecordingID: "chb01_03.edf", Start: 0.75, End: 2.25,
			})
			if err != nil {
				t.Fatalf("second Query: %v", err)
			}
			if again.SampleCount != w.SampleCount {
				t.Errorf("window changed between reads: %d vs %d", w.SampleCount, again.SampleCount)
			}
		})
	}
}
