package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xtxerr/eegstore/internal/storage"
	"github.com/xtxerr/eegstore/internal/storage/config"
	"github.com/xtxerr/eegstore/internal/storage/types"
	"github.com/xtxerr/eegstore/internal/wire"
)

const sampleChunk = `{
	"recording_id": "chb01_03.edf",
	"chunk_index": 0,
	"channels": ["FP1-F7", "F7-T7"],
	"data": [[1.0, 2.0, 3.0], [4.0, 5.0, 6.0]],
	"timestamp": 1708300000.0
}`

func newService(t *testing.T, start bool) *storage.Service {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Database.Driver = "sqlite"

	svc, err := storage.New(cfg)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if start {
		if err := svc.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}
	t.Cleanup(func() { svc.Stop() })
	return svc
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(New(cfg, newService(t, true)))
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, contentType string, body []byte, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Config{})

	resp := get(t, ts.URL+"/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var h HealthResponse
	decode(t, resp, &h)
	if h.Status != "healthy" || !h.Ready {
		t.Errorf("unexpected health %+v", h)
	}
	if resp.Header.Get(HeaderRequestID) == "" {
		t.Error("expected request id header")
	}
}

func TestHealthNotReady(t *testing.T) {
	ts := httptest.NewServer(New(Config{}, newService(t, false)))
	defer ts.Close()

	resp := get(t, ts.URL+"/health")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestIngestJSON(t *testing.T) {
	ts := newTestServer(t, Config{})

	resp := post(t, ts.URL+"/api/ingest/", "application/json", []byte(sampleChunk), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body IngestResponse
	decode(t, resp, &body)
	if body.Status != "accepted" || body.PatientID != "chb01" || body.SamplesWritten != 6 || body.Checksum == "" {
		t.Errorf("unexpected response %+v", body)
	}

	resp = post(t, ts.URL+"/api/ingest/", "application/json", []byte(sampleChunk), nil)
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusOK || body.Status != "duplicate" || body.SamplesWritten != 0 {
		t.Errorf("expected duplicate, got %d %+v", resp.StatusCode, body)
	}
}

func TestIngestProtobufSnappy(t *testing.T) {
	ts := newTestServer(t, Config{})

	start := 2.0
	msg := &wire.ChunkMessage{
		RecordingID:  "chb02_01.edf",
		Channels:     []string{"C3", "C4"},
		Data:         [][]float64{{1, 2}, {3, 4}},
		ChunkStart:   &start,
		SamplingRate: 2,
	}
	body := wire.Compress(wire.Marshal(msg))

	resp := post(t, ts.URL+"/api/ingest/", wire.ContentTypeProtobuf, body, map[string]string{"Content-Encoding": "snappy"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var res IngestResponse
	decode(t, resp, &res)
	if res.Status != "accepted" || res.SamplesWritten != 4 {
		t.Errorf("unexpected response %+v", res)
	}

	resp = get(t, ts.URL+"/api/eeg/chb02/recordings/chb02_01.edf/data?start_sec=2&end_sec=2.5")
	var win types.Window
	decode(t, resp, &win)
	if win.SampleCount != 4 {
		t.Errorf("expected 4 samples at offsets 2 and 2.5, got %+v", win)
	}
}

func TestIngestErrors(t *testing.T) {
	ts := newTestServer(t, Config{MaxBodyBytes: 512, RejectLimit: -1})

	tests := []struct {
		name        string
		contentType string
		encoding    string
		body        string
		want        int
	}{
		{"missing fields", "application/json", "", `{"recording_id": "test"}`, http.StatusUnprocessableEntity},
		{"malformed JSON", "application/json", "", `{"recording_id":`, http.StatusBadRequest},
		{"unsupported type", "text/plain", "", sampleChunk, http.StatusUnsupportedMediaType},
		{"unsupported encoding", "application/json", "gzip", sampleChunk, http.StatusUnsupportedMediaType},
		{"bad snappy", "application/json", "snappy", "not snappy", http.StatusBadRequest},
		{"too large", "application/json", "", `{"pad":"` + strings.Repeat("x", 1024) + `"}`, http.StatusRequestEntityTooLarge},
		{"non-finite values", "application/json", "", `{"recording_id":"chb01_01.edf","channels":["A"],"data":[[1e999]]}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := map[string]string{}
			if tt.encoding != "" {
				h["Content-Encoding"] = tt.encoding
			}
			resp := post(t, ts.URL+"/api/ingest/", tt.contentType, []byte(tt.body), h)
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
			var eb wire.ErrorBody
			decode(t, resp, &eb)
			if eb.Message == "" || eb.RequestID == "" {
				t.Errorf("expected error body with request id, got %+v", eb)
			}
		})
	}
}

func TestQueryEndpoints(t *testing.T) {
	ts := newTestServer(t, Config{})
	post(t, ts.URL+"/api/ingest/", "application/json", []byte(sampleChunk), nil)

	t.Run("recordings", func(t *testing.T) {
		resp := get(t, ts.URL+"/api/eeg/chb01/recordings")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var p types.PatientSummary
		decode(t, resp, &p)
		if p.PatientID != "chb01" || p.SampleCount != 6 || len(p.Channels) != 2 {
			t.Errorf("unexpected patient summary %+v", p)
		}
	})

	t.Run("recordings not found", func(t *testing.T) {
		if resp := get(t, ts.URL+"/api/eeg/unknown/recordings"); resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("summary", func(t *testing.T) {
		resp := get(t, ts.URL+"/api/eeg/chb01/recordings/chb01_03.edf/summary")
		var s types.RecordingSummary
		decode(t, resp, &s)
		if resp.StatusCode != http.StatusOK || s.SampleCount != 6 || s.ChunkCount != 1 {
			t.Errorf("unexpected summary %d %+v", resp.StatusCode, s)
		}
		if resp := get(t, ts.URL+"/api/eeg/chb01/recordings/chb01_99.edf/summary"); resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("data grouped", func(t *testing.T) {
		resp := get(t, ts.URL+"/api/eeg/chb01/recordings/chb01_03.edf/data?start_sec=0&end_sec=1&stats=true")
		var win types.Window
		decode(t, resp, &win)
		if win.SampleCount != 6 || len(win.Channels) != 2 || win.Channels[0].Channel != "F7-T7" {
			t.Fatalf("unexpected window %+v", win)
		}
		if win.Channels[0].Stats == nil || win.Channels[0].Stats.Mean != 5 {
			t.Errorf("unexpected stats %+v", win.Channels[0].Stats)
		}
	})

	t.Run("data flat", func(t *testing.T) {
		resp := get(t, ts.URL+"/api/eeg/chb01/recordings/chb01_03.edf/data?start_sec=0&end_sec=1&layout=flat&channels=FP1-F7")
		var flat FlatWindow
		decode(t, resp, &flat)
		if len(flat.Samples) != 3 || flat.Samples[0].Channel != "FP1-F7" || flat.Samples[2].Value != 3 {
			t.Errorf("unexpected flat window %+v", flat)
		}
	})

	t.Run("data empty range", func(t *testing.T) {
		resp := get(t, ts.URL+"/api/eeg/chb01/recordings/chb01_03.edf/data?start_sec=99&end_sec=100&layout=flat")
		var flat FlatWindow
		decode(t, resp, &flat)
		if resp.StatusCode != http.StatusOK || flat.Samples == nil || len(flat.Samples) != 0 {
			t.Errorf("expected empty sample list, got %d %+v", resp.StatusCode, flat)
		}
	})

	t.Run("data bad params", func(t *testing.T) {
		for _, q := range []string{"end_sec=1", "start_sec=x&end_sec=1", "start_sec=0&end_sec=1&layout=wide", "start_sec=NaN&end_sec=1"} {
			if resp := get(t, ts.URL+"/api/eeg/chb01/recordings/chb01_03.edf/data?"+q); resp.StatusCode != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", q, resp.StatusCode)
			}
		}
	})

	t.Run("chunks", func(t *testing.T) {
		resp := get(t, ts.URL+"/api/eeg/chb01/recordings/chb01_03.edf/chunks?limit=10")
		var body struct {
			Chunks []types.IngestionRecord `json:"chunks"`
		}
		decode(t, resp, &body)
		if len(body.Chunks) != 1 || body.Chunks[0].NumSamples != 6 {
			t.Errorf("unexpected chunks %+v", body.Chunks)
		}
		if resp := get(t, ts.URL+"/api/eeg/chb01/recordings/chb01_03.edf/chunks?limit=-1"); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("chunk", func(t *testing.T) {
		resp := get(t, ts.URL+"/api/eeg/chb01/recordings/chb01_03.edf/chunks/0")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var rec types.IngestionRecord
		decode(t, resp, &rec)
		if rec.RecordingID != "chb01_03.edf" || rec.NumSamples != 6 || rec.Checksum == "" {
			t.Errorf("unexpected chunk %+v", rec)
		}
		if resp := get(t, ts.URL+"/api/eeg/chb01/recordings/chb01_03.edf/chunks/5"); resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
		if resp := get(t, ts.URL+"/api/eeg/chb01/recordings/chb01_03.edf/chunks/abc"); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("export", func(t *testing.T) {
		resp := post(t, ts.URL+"/api/eeg/chb01/recordings/chb01_03.edf/export", "", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var res struct {
			Rows int64  `json:"rows"`
			Path string `json:"path"`
		}
		decode(t, resp, &res)
		if res.Rows != 6 || res.Path == "" {
			t.Errorf("unexpected export %+v", res)
		}
	})

	t.Run("stats", func(t *testing.T) {
		resp := get(t, ts.URL+"/api/stats")
		var st storage.ServiceStats
		decode(t, resp, &st)
		if !st.Running || st.Ingestion.ChunksAccepted != 1 {
			t.Errorf("unexpected stats %+v", st)
		}
	})
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, Config{CORSOrigins: []string{"http://localhost:5173"}})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/ingest/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("unexpected allow origin %q", got)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") != "" {
		t.Error("unknown origin should not be allowed")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	ts := newTestServer(t, Config{})

	const id = "2f1c5a1e-8f4b-4a8e-9d55-6a9f0e4b7c21"
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	req.Header.Set(HeaderRequestID, id)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get(HeaderRequestID) != id {
		t.Errorf("expected request id %s, got %s", id, resp.Header.Get(HeaderRequestID))
	}
}

func TestRejectLimit(t *testing.T) {
	ts := newTestServer(t, Config{RejectLimit: 3})

	for i := 0; i < 3; i++ {
		resp := post(t, ts.URL+"/api/ingest/", "application/json", []byte(`{`), nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("request %d: expected 400, got %d", i, resp.StatusCode)
		}
	}

	resp := post(t, ts.URL+"/api/ingest/", "application/json", []byte(sampleChunk), nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After")
	}

	// Queries are not limited
	if resp := get(t, ts.URL+"/health"); resp.StatusCode != http.StatusOK {
		t.Errorf("health should not be limited, got %d", resp.StatusCode)
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	rl.RecordFailure("10.0.0.1")
	if rl.IsBlocked("10.0.0.1") {
		t.Error("one failure should not block")
	}
	rl.RecordFailure("10.0.0.1")
	if !rl.IsBlocked("10.0.0.1") {
		t.Error("two failures should block")
	}
	if rl.IsBlocked("10.0.0.2") {
		t.Error("other clients are unaffected")
	}

	now = now.Add(2 * time.Minute)
	if rl.IsBlocked("10.0.0.1") || rl.FailureCount("10.0.0.1") != 0 {
		t.Error("window should have expired")
	}
	rl.cleanup()
	if len(rl.failures) != 0 {
		t.Errorf("expected expired entries removed, got %d", len(rl.failures))
	}

	rl.RecordFailure("10.0.0.1")
	rl.Reset("10.0.0.1")
	if rl.FailureCount("10.0.0.1") != 0 {
		t.Error("Reset should clear the counter")
	}

	disabled := NewRateLimiter(0, time.Minute)
	for i := 0; i < 10; i++ {
		disabled.RecordFailure("x")
	}
	if disabled.IsBlocked("x") {
		t.Error("limit 0 should never block")
	}
}

func TestClientIP(t *testing.T) {
	if got := clientIP("192.0.2.1:5555"); got != "192.0.2.1" {
		t.Errorf("got %s", got)
	}
	if got := clientIP("[::1]:80"); got != "::1" {
		t.Errorf("got %s", got)
	}
	if got := clientIP("garbage"); got != "garbage" {
		t.Errorf("got %s", got)
	}
}
