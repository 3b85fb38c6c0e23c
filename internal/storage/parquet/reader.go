package parquet

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/xtxerr/eegstore/internal/storage/types"
)

// reader is the shared file handling of both row readers.
type reader[T any] struct {
	file *os.File
	pr   *parquet.GenericReader[T]
	path string
}

func newReader[T any](path string) (*reader[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return &reader[T]{
		file: f,
		pr:   parquet.NewGenericReader[T](f, parquet.ReadBufferSize(1024*1024)),
		path: path,
	}, nil
}

// read fills up to n rows. It returns io.EOF only when no rows remain.
func (r *reader[T]) read(n int) ([]T, error) {
	rows := make([]T, n)
	count, err := r.pr.Read(rows)
	if errors.Is(err, io.EOF) && count > 0 {
		err = nil
	}
	return rows[:count], err
}

func (r *reader[T]) readAll() ([]T, error) {
	out := make([]T, 0, r.pr.NumRows())
	for {
		rows, err := r.read(4096)
		out = append(out, rows...)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (r *reader[T]) close() error {
	if err := r.pr.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// SampleReader reads samples from a Parquet file.
type SampleReader struct {
	r *reader[SampleRow]
}

// NewSampleReader creates a new sample Parquet reader.
func NewSampleReader(path string) (*SampleReader, error) {
	r, err := newReader[SampleRow](path)
	if err != nil {
		return nil, err
	}
	return &SampleReader{r: r}, nil
}

// Read reads up to n samples. It returns io.EOF when the file is exhausted.
func (r *SampleReader) Read(n int) ([]types.Sample, error) {
	rows, err := r.r.read(n)
	return rowsToSamples(rows), err
}

// ReadAll reads all remaining samples.
func (r *SampleReader) ReadAll() ([]types.Sample, error) {
	rows, err := r.r.readAll()
	if err != nil {
		return nil, err
	}
	return rowsToSamples(rows), nil
}

// NumRows returns the total number of rows in the file.
func (r *SampleReader) NumRows() int64 { return r.r.pr.NumRows() }

// Close closes the reader.
func (r *SampleReader) Close() error { return r.r.close() }

// Path returns the file path.
func (r *SampleReader) Path() string { return r.r.path }

func rowsToSamples(rows []SampleRow) []types.Sample {
	samples := make([]types.Sample, len(rows))
	for i := range rows {
		samples[i] = RowToSample(&rows[i])
	}
	return samples
}

// RecordReader reads ingestion audit entries from a Parquet file.
type RecordReader struct {
	r *reader[RecordRow]
}

// NewRecordReader creates a new audit Parquet reader.
func NewRecordReader(path string) (*RecordReader, error) {
	r, err := newReader[RecordRow](path)
	if err != nil {
		return nil, err
	}
	return &RecordReader{r: r}, nil
}

// ReadAll reads all remaining audit entries.
func (r *RecordReader) ReadAll() ([]types.IngestionRecord, error) {
	rows, err := r.r.readAll()
	if err != nil {
		return nil, err
	}
	recs := make([]types.IngestionRecord, len(rows))
	for i := range rows {
		recs[i] = RowToRecord(&rows[i])
	}
	return recs, nil
}

// NumRows returns the total number of rows in the file.
func (r *RecordReader) NumRows() int64 { return r.r.pr.NumRows() }

// Close closes the reader.
func (r *RecordReader) Close() error { return r.r.close() }

// FileInfo holds information about a Parquet file.
type FileInfo struct {
	Path         string `json:"path"`
	Size         int64  `json:"size_bytes"`
	NumRows      int64  `json:"rows"`
	NumRowGroups int    `json:"row_groups"`
}

// GetFileInfo returns information about a Parquet file.
func GetFileInfo(path string) (*FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	return &FileInfo{
		Path:         path,
		Size:         stat.Size(),
		NumRows:      pf.NumRows(),
		NumRowGroups: len(pf.RowGroups()),
	}, nil
}
