package parquet

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/eegstore/internal/storage/types"
)

// Options configures the Parquet writer.
type Options struct {
	// Compression algorithm
	Compression CompressionType

	// RowGroupSize is the maximum number of rows per row group
	RowGroupSize int

	// PageSize is the target page buffer size in bytes
	PageSize int
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{
		Compression:  CompressionZstd,
		RowGroupSize: 100000,
		PageSize:     1024 * 1024, // 1MB
	}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd", "":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

// String returns the configuration name of the codec.
func (c CompressionType) String() string {
	switch c {
	case CompressionSnappy:
		return "snappy"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionGzip:
		return "gzip"
	default:
		return "none"
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

func writerOptions(opts Options) []parquet.WriterOption {
	wo := []parquet.WriterOption{
		parquet.Compression(getCompression(opts.Compression)),
		parquet.CreatedBy("eegstore", "", ""),
	}
	if opts.RowGroupSize > 0 {
		wo = append(wo, parquet.MaxRowsPerRowGroup(int64(opts.RowGroupSize)))
	}
	if opts.PageSize > 0 {
		wo = append(wo, parquet.PageBufferSize(opts.PageSize))
	}
	return wo
}

// SampleRow represents a sample in Parquet format.
type SampleRow struct {
	PatientID   string    `parquet:"patient_id,dict"`
	RecordingID string    `parquet:"recording_id,dict"`
	Channel     string    `parquet:"channel,dict"`
	TimeOffset  float64   `parquet:"time_offset"`
	Value       float64   `parquet:"value"`
	IngestedAt  time.Time `parquet:"ingested_at,timestamp(microsecond)"`
}

// RecordRow represents an ingestion audit entry in Parquet format.
type RecordRow struct {
	ID            string    `parquet:"id"`
	PatientID     string    `parquet:"patient_id,dict"`
	RecordingID   string    `parquet:"recording_id,dict"`
	SequenceIndex int64     `parquet:"sequence_index"`
	ChunkStart    float64   `parquet:"chunk_start"`
	ChunkEnd      float64   `parquet:"chunk_end"`
	NumSamples    int64     `parquet:"num_samples"`
	NumChannels   int64     `parquet:"num_channels"`
	Checksum      string    `parquet:"checksum"`
	ChecksumAlgo  string    `parquet:"checksum_algo,dict"`
	IngestedAt    time.Time `parquet:"ingested_at,timestamp(microsecond)"`
}

// SampleToRow converts a Sample to a SampleRow.
func SampleToRow(s *types.Sample) SampleRow {
	return SampleRow{
		PatientID:   s.PatientID,
		RecordingID: s.RecordingID,
		Channel:     s.Channel,
		TimeOffset:  s.Offset,
		Value:       s.Value,
		IngestedAt:  s.IngestedAt.UTC(),
	}
}

// RowToSample converts a SampleRow to a Sample.
func RowToSample(r *SampleRow) types.Sample {
	return types.Sample{
		PatientID:   r.PatientID,
		RecordingID: r.RecordingID,
		Channel:     r.Channel,
		Offset:      r.TimeOffset,
		Value:       r.Value,
		IngestedAt:  r.IngestedAt.UTC(),
	}
}

// RecordToRow converts an IngestionRecord to a RecordRow.
func RecordToRow(r *types.IngestionRecord) RecordRow {
	return RecordRow{
		ID:            r.ID,
		PatientID:     r.PatientID,
		RecordingID:   r.RecordingID,
		SequenceIndex: r.SequenceIndex,
		ChunkStart:    r.ChunkStart,
		ChunkEnd:      r.ChunkEnd,
		NumSamples:    r.NumSamples,
		NumChannels:   r.NumChannels,
		Checksum:      r.Checksum,
		ChecksumAlgo:  r.ChecksumAlgo,
		IngestedAt:    r.IngestedAt.UTC(),
	}
}

// RowToRecord converts a RecordRow to an IngestionRecord.
func RowToRecord(r *RecordRow) types.IngestionRecord {
	return types.IngestionRecord{
		ID:            r.ID,
		PatientID:     r.PatientID,
		RecordingID:   r.RecordingID,
		SequenceIndex: r.SequenceIndex,
		ChunkStart:    r.ChunkStart,
		ChunkEnd:      r.ChunkEnd,
		NumSamples:    r.NumSamples,
		NumChannels:   r.NumChannels,
		Checksum:      r.Checksum,
		ChecksumAlgo:  r.ChecksumAlgo,
		IngestedAt:    r.IngestedAt.UTC(),
	}
}

// writer is the shared file handling of both row writers.
type writer[T any] struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	pw       *parquet.GenericWriter[T]
	rowCount int64
	closed   bool
}

func newWriter[T any](path string, opts Options) (*writer[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	return &writer[T]{
		path: path,
		file: f,
		pw:   parquet.NewGenericWriter[T](f, writerOptions(opts)...),
	}, nil
}

func (w *writer[T]) write(rows []T) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	n, err := w.pw.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	w.rowCount += int64(n)
	return nil
}

func (w *writer[T]) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.pw.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return fmt.Errorf("sync file: %w", err)
	}
	return w.file.Close()
}

// abort closes and removes a partially written file.
func (w *writer[T]) abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		w.file.Close()
	}
	os.Remove(w.path)
}

// SampleWriter writes samples to a Parquet file.
type SampleWriter struct {
	w *writer[SampleRow]
}

// NewSampleWriter creates a new sample Parquet writer.
func NewSampleWriter(path string, opts Options) (*SampleWriter, error) {
	w, err := newWriter[SampleRow](path, opts)
	if err != nil {
		return nil, err
	}
	return &SampleWriter{w: w}, nil
}

// Write writes samples to the Parquet file.
func (w *SampleWriter) Write(samples []types.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	rows := make([]SampleRow, len(samples))
	for i := range samples {
		rows[i] = SampleToRow(&samples[i])
	}
	return w.w.write(rows)
}

// Close flushes the footer and closes the file.
func (w *SampleWriter) Close() error { return w.w.close() }

// Abort closes the writer and deletes the file.
func (w *SampleWriter) Abort() { w.w.abort() }

// RowCount returns the number of rows written.
func (w *SampleWriter) RowCount() int64 {
	w.w.mu.Lock()
	defer w.w.mu.Unlock()
	return w.w.rowCount
}

// Path returns the file path.
func (w *SampleWriter) Path() string { return w.w.path }

// RecordWriter writes ingestion audit entries to a Parquet file.
type RecordWriter struct {
	w *writer[RecordRow]
}

// NewRecordWriter creates a new audit Parquet writer.
func NewRecordWriter(path string, opts Options) (*RecordWriter, error) {
	w, err := newWriter[RecordRow](path, opts)
	if err != nil {
		return nil, err
	}
	return &RecordWriter{w: w}, nil
}

// Write writes audit entries to the Parquet file.
func (w *RecordWriter) Write(recs []types.IngestionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([]RecordRow, len(recs))
	for i := range recs {
		rows[i] = RecordToRow(&recs[i])
	}
	return w.w.write(rows)
}

// Close flushes the footer and closes the file.
func (w *RecordWriter) Close() error { return w.w.close() }

// Abort closes the writer and deletes the file.
func (w *RecordWriter) Abort() { w.w.abort() }

// RowCount returns the number of rows written.
func (w *RecordWriter) RowCount() int64 {
	w.w.mu.Lock()
	defer w.w.mu.Unlock()
	return w.w.rowCount
}

// Path returns the file path.
func (w *RecordWriter) Path() string { return w.w.path }

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = fmt.Errorf("parquet writer is closed")
