package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/storage/config"
	"github.com/xtxerr/eegstore/internal/storage/ingestion"
	"github.com/xtxerr/eegstore/internal/storage/types"
	"github.com/xtxerr/eegstore/internal/store"
)

func setupCatalog(t *testing.T, driver string) (*Catalog, *ingestion.Coordinator) {
	t.Helper()

	scfg := store.DefaultConfig()
	scfg.Driver = driver
	scfg.Path = filepath.Join(t.TempDir(), "eeg.db")
	st, err := store.Open(scfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	coord, err := ingestion.New(ingestion.Options{Writer: st})
	if err != nil {
		t.Fatalf("ingestion.New: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Query.ChunkListLimit = 2
	return New(cfg, st), coord
}

func ingest(t *testing.T, coord *ingestion.Coordinator, recording string, start float64, channels ...string) {
	t.Helper()
	data := make([][]float64, len(channels))
	for i := range data {
		data[i] = []float64{1, 2}
	}
	_, err := coord.Ingest(context.Background(), &types.Chunk{
		RecordingID:  recording,
		Channels:     channels,
		Data:         data,
		StartOffset:  start,
		SamplingRate: 2,
	})
	if err != nil {
		t.Fatalf("ingest %s@%v: %v", recording, start, err)
	}
}

func TestCatalog(t *testing.T) {
	for _, driver := range []string{store.DriverDuckDB, store.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			c, coord := setupCatalog(t, driver)
			ctx := context.Background()

			ingest(t, coord, "chb01_03.edf", 0, "FP1", "F7")
			ingest(t, coord, "chb01_03.edf", 1, "FP1", "F7")
			ingest(t, coord, "chb01_03.edf", 2, "FP1", "F7")
			ingest(t, coord, "chb01_01.edf", 10, "T7")
			ingest(t, coord, "chb02_01.edf", 0, "O1")

			s, err := c.Summary(ctx, "chb01", "chb01_03.edf")
			if err != nil {
				t.Fatalf("Summary: %v", err)
			}
			if s.SampleCount != 12 || s.ChunkCount != 3 || s.ChannelCount != 2 {
				t.Errorf("unexpected summary %+v", s)
			}
			if s.StartOffset != 0 || s.EndOffset != 2.5 {
				t.Errorf("unexpected range %v..%v", s.StartOffset, s.EndOffset)
			}
			if s.Channels[0] != "F7" || s.Channels[1] != "FP1" {
				t.Errorf("channels not sorted: %v", s.Channels)
			}

			recs, err := c.ListRecordings(ctx, "chb01")
			if err != nil {
				t.Fatalf("ListRecordings: %v", err)
			}
			if len(recs) != 2 || recs[0].RecordingID != "chb01_01.edf" || recs[1].RecordingID != "chb01_03.edf" {
				t.Errorf("unexpected recordings %+v", recs)
			}
			if recs[0].StartOffset != 10 {
				t.Errorf("expected chb01_01 to start at 10, got %v", recs[0].StartOffset)
			}

			p, err := c.PatientSummary(ctx, "chb01")
			if err != nil {
				t.Fatalf("PatientSummary: %v", err)
			}
			if p.SampleCount != 14 || len(p.Channels) != 3 || len(p.Recordings) != 2 {
				t.Errorf("unexpected patient summary %+v", p)
			}

			chunks, err := c.Chunks(ctx, "chb01", "chb01_03.edf", 0)
			if err != nil {
				t.Fatalf("Chunks: %v", err)
			}
			if len(chunks) != 2 {
				t.Fatalf("expected configured limit of 2, got %d", len(chunks))
			}
			if chunks[0].ChunkStart != 0 || chunks[1].ChunkStart != 1 {
				t.Errorf("chunks not ordered by start: %+v", chunks)
			}
			if chunks[0].Checksum == "" || chunks[0].ChecksumAlgo != "sha256" {
				t.Errorf("expected fingerprint on audit record, got %+v", chunks[0])
			}
		})
	}
}

func TestCatalogNotFound(t *testing.T) {
	c, coord := setupCatalog(t, store.DriverSQLite)
	ctx := context.Background()

	ingest(t, coord, "chb01_03.edf", 0, "FP1")

	if _, err := c.Summary(ctx, "chb01", "chb01_99.edf"); !errors.Is(err, errors.ErrRecordingNotFound) {
		t.Errorf("expected ErrRecordingNotFound, got %v", err)
	}
	if _, err := c.Summary(ctx, "chb02", "chb01_03.edf"); !errors.Is(err, errors.ErrRecordingNotFound) {
		t.Errorf("recording under the wrong patient should be not found, got %v", err)
	}
	if _, err := c.PatientSummary(ctx, "chb99"); !errors.Is(err, errors.ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}

	recs, err := c.ListRecordings(ctx, "chb99")
	if err != nil {
		t.Fatalf("ListRecordings: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no recordings, got %v", recs)
	}

	rec, err := c.Chunk(ctx, "chb01", "chb01_03.edf", 0)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if rec.PatientID != "chb01" || rec.ChunkStart != 0 || rec.NumChannels != 1 {
		t.Errorf("unexpected chunk %+v", rec)
	}
	if _, err := c.Chunk(ctx, "chb01", "chb01_03.edf", 7); !errors.IsNotFound(err) {
		t.Errorf("expected not found for unknown start, got %v", err)
	}
	if _, err := c.Chunk(ctx, "chb02", "chb01_03.edf", 0); !errors.IsNotFound(err) {
		t.Errorf("chunk under the wrong patient should be not found, got %v", err)
	}

	chunks, err := c.Chunks(ctx, "chb99", "none", 10)
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if chunks == nil || len(chunks) != 0 {
		t.Errorf("expected empty non-nil list, got %v", chunks)
	}
}

func TestCatalogValidation(t *testing.T) {
	c, _ := setupCatalog(t, store.DriverSQLite)
	ctx := context.Background()

	if _, err := c.Summary(ctx, "", "r"); !errors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := c.ListRecordings(ctx, "../etc"); !errors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
