package server

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/logging"
	"github.com/xtxerr/eegstore/internal/storage/types"
	"github.com/xtxerr/eegstore/internal/validation"
	"github.com/xtxerr/eegstore/internal/wire"
)

// =============================================================================
// Ingest
// =============================================================================

// IngestResponse is the body of a successful ingest.
type IngestResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	RecordingID    string `json:"recording_id"`
	PatientID      string `json:"patient_id"`
	SamplesWritten int    `json:"samples_written"`
	Checksum       string `json:"checksum,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	msg, err := s.decodeChunk(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	chunk := msg.ToChunk()
	ctx := logging.ContextWithRecording(r.Context(), "", chunk.RecordingID)
	res, err := s.backend.Ingest(ctx, &chunk)
	if err != nil {
		s.writeError(w, r.WithContext(ctx), err)
		return
	}

	resp := IngestResponse{
		Status:         string(res.Status),
		RecordingID:    res.RecordingID,
		PatientID:      res.PatientID,
		SamplesWritten: res.SamplesWritten,
		Checksum:       res.Fingerprint,
	}
	if res.Status == types.StatusAccepted {
		resp.Message = "Chunk ingested successfully"
	} else {
		resp.Message = "Chunk already ingested"
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeChunk reads the body within the size limit, undoes the content
// encoding and decodes JSON or protobuf by content type.
func (s *Server) decodeChunk(w http.ResponseWriter, r *http.Request) (*wire.ChunkMessage, error) {
	mediaType := wire.ContentTypeJSON
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrUnsupportedMediaType, "content type %q", ct)
		}
		mediaType = mt
	}
	if mediaType != wire.ContentTypeJSON && mediaType != wire.ContentTypeProtobuf {
		return nil, errors.Wrapf(errors.ErrUnsupportedMediaType, "content type %q", mediaType)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.Wrapf(errors.ErrBodyTooLarge, "body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, errors.Wrapf(errors.ErrMalformedBody, "read body: %v", err)
	}

	limit := int(s.cfg.MaxBodyBytes) * s.cfg.DecodeFactor
	body, err = wire.Decompress(body, r.Header.Get("Content-Encoding"), limit)
	if err != nil {
		return nil, err
	}

	if mediaType == wire.ContentTypeProtobuf {
		return wire.Unmarshal(body, limit)
	}

	var msg wire.ChunkMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedBody, "decode JSON: %v", err)
	}
	return &msg, nil
}

// =============================================================================
// Catalog
// =============================================================================

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	p, err := s.backend.PatientSummary(r.Context(), chi.URLParam(r, "patient"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.backend.Summary(r.Context(), chi.URLParam(r, "patient"), chi.URLParam(r, "recording"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, errors.Wrapf(errors.ErrMalformedBody, "limit %q is not a non-negative integer", v))
			return
		}
		limit = n
	}

	patient, recording := chi.URLParam(r, "patient"), chi.URLParam(r, "recording")
	recs, err := s.backend.Chunks(r.Context(), patient, recording, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patient_id":   patient,
		"recording_id": recording,
		"chunks":       recs,
	})
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	start, err := floatParam(chi.URLParam(r, "start"), "start")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.backend.Chunk(r.Context(), chi.URLParam(r, "patient"), chi.URLParam(r, "recording"), start)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := s.backend.Export(r.Context(), chi.URLParam(r, "patient"), chi.URLParam(r, "recording"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// Window data
// =============================================================================

// FlatSample is one point of the flat data layout.
type FlatSample struct {
	Channel   string  `json:"channel"`
	Timestamp float64 `json:"timestamp_sec"`
	Value     float64 `json:"value_uv"`
}

// FlatWindow is the flat data layout: all points ordered by time, then
// channel.
type FlatWindow struct {
	PatientID   string                         `json:"patient_id"`
	RecordingID string                         `json:"recording_id"`
	Start       float64                        `json:"start_sec"`
	End         float64                        `json:"end_sec"`
	SampleCount int                            `json:"sample_count"`
	Samples     []FlatSample                   `json:"samples"`
	Stats       map[string]*types.ChannelStats `json:"stats,omitempty"`
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	q, flat, err := parseWindowQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	win, err := s.backend.Query(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if !flat {
		writeJSON(w, http.StatusOK, win)
		return
	}
	writeJSON(w, http.StatusOK, flatten(win))
}

func parseWindowQuery(r *http.Request) (types.WindowQuery, bool, error) {
	v := r.URL.Query()
	q := types.WindowQuery{
		PatientID:   chi.URLParam(r, "patient"),
		RecordingID: chi.URLParam(r, "recording"),
	}

	var err error
	if q.Start, err = floatParam(v.Get("start_sec"), "start_sec"); err != nil {
		return q, false, err
	}
	if q.End, err = floatParam(v.Get("end_sec"), "end_sec"); err != nil {
		return q, false, err
	}

	if ch := v.Get("channels"); ch != "" {
		if q.Channels, err = validation.ParseChannelList(ch); err != nil {
			return q, false, err
		}
	}

	if st := v.Get("stats"); st != "" {
		if q.WithStats, err = strconv.ParseBool(st); err != nil {
			return q, false, errors.Wrapf(errors.ErrMalformedBody, "stats %q is not a boolean", st)
		}
	}

	switch layout := v.Get("layout"); layout {
	case "", "grouped":
		return q, false, nil
	case "flat":
		return q, true, nil
	default:
		return q, false, errors.Wrapf(errors.ErrMalformedBody, "unknown layout %q", layout)
	}
}

func floatParam(s, name string) (float64, error) {
	if s == "" {
		return 0, errors.Wrapf(errors.ErrInvalidRange, "%s is required", name)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidRange, "%s %q is not a number", name, s)
	}
	return f, nil
}

func flatten(win *types.Window) *FlatWindow {
	out := &FlatWindow{
		PatientID:   win.PatientID,
		RecordingID: win.RecordingID,
		Start:       win.Start,
		End:         win.End,
		SampleCount: win.SampleCount,
		Samples:     make([]FlatSample, 0, win.SampleCount),
	}
	for i := range win.Channels {
		series := &win.Channels[i]
		for j := range series.Offsets {
			out.Samples = append(out.Samples, FlatSample{
				Channel:   series.Channel,
				Timestamp: series.Offsets[j],
				Value:     series.Values[j],
			})
		}
		if series.Stats != nil {
			if out.Stats == nil {
				out.Stats = make(map[string]*types.ChannelStats)
			}
			out.Stats[series.Channel] = series.Stats
		}
	}
	// Channels arrive sorted by name, so a stable sort keeps that order
	// within one timestamp.
	sort.SliceStable(out.Samples, func(i, j int) bool {
		return out.Samples[i].Timestamp < out.Samples[j].Timestamp
	})
	return out
}

// =============================================================================
// Health & stats
// =============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Ready(r.Context()); err != nil {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:  "unavailable",
			Message: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Ready:   true,
		Message: "API is up and running",
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Stats())
}
