// Package client is a typed HTTP client for the eegstore server.
//
// Ingest retries retriable failures (overload, not ready, timeouts) with
// backoff. Retrying is safe because ingestion is idempotent per
// (recording, chunk start).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/server"
	"github.com/xtxerr/eegstore/internal/storage/types"
	"github.com/xtxerr/eegstore/internal/wire"
)

// Encoding selects the ingest body format.
type Encoding int

const (
	// EncodingJSON sends application/json.
	EncodingJSON Encoding = iota
	// EncodingProtobuf sends application/x-protobuf.
	EncodingProtobuf
	// EncodingProtobufSnappy sends snappy-compressed protobuf.
	EncodingProtobufSnappy
)

// String returns the flag name of the encoding.
func (e Encoding) String() string {
	switch e {
	case EncodingProtobuf:
		return "protobuf"
	case EncodingProtobufSnappy:
		return "protobuf+snappy"
	default:
		return "json"
	}
}

// ParseEncoding parses a flag value. Unknown names fall back to JSON.
func ParseEncoding(s string) Encoding {
	switch strings.ToLower(s) {
	case "protobuf", "proto":
		return EncodingProtobuf
	case "protobuf+snappy", "snappy":
		return EncodingProtobufSnappy
	default:
		return EncodingJSON
	}
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8000".
	BaseURL string

	// Encoding is the ingest body format.
	Encoding Encoding

	// RequestTimeout bounds one HTTP attempt.
	RequestTimeout time.Duration

	// MaxRetries is the number of extra ingest attempts on retriable errors.
	MaxRetries int

	// RetryBackoff is the first retry delay; it doubles per attempt.
	RetryBackoff time.Duration
}

// DefaultConfig returns default client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "http://localhost:8000",
		Encoding:       EncodingJSON,
		RequestTimeout: 30 * time.Second,
		MaxRetries:     3,
		RetryBackoff:   100 * time.Millisecond,
	}
}

// Client talks to one server.
//
// Client is safe for concurrent use.
type Client struct {
	cfg  Config
	base *url.URL
	http *http.Client
}

// New creates a client. A nil cfg uses DefaultConfig.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultConfig().RequestTimeout
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultConfig().RetryBackoff
	}

	base, err := url.Parse(strings.TrimRight(c.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", c.BaseURL)
	}

	return &Client{
		cfg:  c,
		base: base,
		http: &http.Client{Timeout: c.RequestTimeout},
	}, nil
}

// =============================================================================
// Ingest
// =============================================================================

// Ingest sends one chunk. A duplicate is a successful response with
// Status "duplicate".
func (c *Client) Ingest(ctx context.Context, chunk *types.Chunk) (*server.IngestResponse, error) {
	body, contentType, encoding, err := c.encode(chunk)
	if err != nil {
		return nil, err
	}

	var resp server.IngestResponse
	backoff := c.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		err = c.do(ctx, http.MethodPost, "/api/ingest/", nil, body, func(r *http.Request) {
			r.Header.Set("Content-Type", contentType)
			if encoding != "" {
				r.Header.Set("Content-Encoding", encoding)
			}
		}, &resp)
		if err == nil || attempt >= c.cfg.MaxRetries || !errors.IsRetriable(err) {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) encode(chunk *types.Chunk) ([]byte, string, string, error) {
	msg := wire.FromChunk(*chunk)

	switch c.cfg.Encoding {
	case EncodingProtobuf:
		return wire.Marshal(msg), wire.ContentTypeProtobuf, "", nil
	case EncodingProtobufSnappy:
		return wire.Compress(wire.Marshal(msg)), wire.ContentTypeProtobuf, wire.EncodingSnappy, nil
	default:
		b, err := json.Marshal(msg)
		if err != nil {
			return nil, "", "", fmt.Errorf("encode chunk: %w", err)
		}
		return b, wire.ContentTypeJSON, "", nil
	}
}

// =============================================================================
// Queries
// =============================================================================

// Query reads a window in the grouped layout.
func (c *Client) Query(ctx context.Context, q types.WindowQuery) (*types.Window, error) {
	v := url.Values{}
	v.Set("start_sec", strconv.FormatFloat(q.Start, 'g', -1, 64))
	v.Set("end_sec", strconv.FormatFloat(q.End, 'g', -1, 64))
	if len(q.Channels) > 0 {
		v.Set("channels", strings.Join(q.Channels, ","))
	}
	if q.WithStats {
		v.Set("stats", "true")
	}

	var w types.Window
	if err := c.get(ctx, recordingPath(q.PatientID, q.RecordingID, "data"), v, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Summary describes one recording.
func (c *Client) Summary(ctx context.Context, patientID, recordingID string) (*types.RecordingSummary, error) {
	var s types.RecordingSummary
	if err := c.get(ctx, recordingPath(patientID, recordingID, "summary"), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Recordings describes a patient and its recordings.
func (c *Client) Recordings(ctx context.Context, patientID string) (*types.PatientSummary, error) {
	var p types.PatientSummary
	if err := c.get(ctx, "/api/eeg/"+url.PathEscape(patientID)+"/recordings", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Chunks returns the audit trail of a recording. limit 0 uses the server cap.
func (c *Client) Chunks(ctx context.Context, patientID, recordingID string, limit int) ([]types.IngestionRecord, error) {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var body struct {
		Chunks []types.IngestionRecord `json:"chunks"`
	}
	if err := c.get(ctx, recordingPath(patientID, recordingID, "chunks"), v, &body); err != nil {
		return nil, err
	}
	return body.Chunks, nil
}

// Chunk returns the audit entry of the chunk starting at start.
func (c *Client) Chunk(ctx context.Context, patientID, recordingID string, start float64) (*types.IngestionRecord, error) {
	var rec types.IngestionRecord
	leaf := "chunks/" + strconv.FormatFloat(start, 'g', -1, 64)
	if err := c.get(ctx, recordingPath(patientID, recordingID, leaf), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Health returns the server health. A server that is not ready yields
// an error matching ErrNotReady.
func (c *Client) Health(ctx context.Context) (*server.HealthResponse, error) {
	var h server.HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, nil, nil, &h)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func recordingPath(patientID, recordingID, leaf string) string {
	return "/api/eeg/" + url.PathEscape(patientID) + "/recordings/" + url.PathEscape(recordingID) + "/" + leaf
}

// =============================================================================
// Transport
// =============================================================================

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, prepare func(*http.Request), out interface{}) error {
	u := *c.base
	u.Path += path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", wire.ContentTypeJSON)
	if prepare != nil {
		prepare(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(errors.ErrNotReady, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError turns an error response into an error matching the
// server's sentinel.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var eb wire.ErrorBody
	if err := json.Unmarshal(data, &eb); err == nil && eb.Code != 0 {
		return fmt.Errorf("http %d: %w", resp.StatusCode, eb.Err())
	}

	// /health answers 503 with its own body
	var sentinel error = errors.ErrInternal
	if resp.StatusCode == http.StatusServiceUnavailable {
		sentinel = errors.ErrNotReady
	}
	return fmt.Errorf("http %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(data)), sentinel)
}
