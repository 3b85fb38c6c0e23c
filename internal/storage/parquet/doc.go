// Package parquet implements Parquet file reading and writing for exported
// recordings.
//
// The package provides:
//   - SampleWriter/SampleReader for stored samples
//   - RecordWriter/RecordReader for the ingestion audit trail
//   - Support for multiple compression algorithms (snappy, zstd, lz4, gzip)
package parquet
