package types

import "time"

// IngestStatus is the outcome of an ingest call.
type IngestStatus string

const (
	// StatusAccepted means the chunk was written by this call.
	StatusAccepted IngestStatus = "accepted"
	// StatusDuplicate means the chunk key already existed; nothing was written.
	StatusDuplicate IngestStatus = "duplicate"
)

// IngestResult is returned by the ingestion coordinator.
type IngestResult struct {
	Status         IngestStatus
	PatientID      string
	RecordingID    string
	SamplesWritten int
	Fingerprint    string
}

// IngestionRecord is the audit entry for an accepted chunk. At most one
// exists per (RecordingID, ChunkStart).
type IngestionRecord struct {
	ID            string    `db:"id" json:"id"`
	PatientID     string    `db:"patient_id" json:"patient_id"`
	RecordingID   string    `db:"recording_id" json:"recording_id"`
	SequenceIndex int64     `db:"sequence_index" json:"sequence_index"`
	ChunkStart    float64   `db:"chunk_start" json:"chunk_start_sec"`
	ChunkEnd      float64   `db:"chunk_end" json:"chunk_end_sec"`
	NumSamples    int64     `db:"num_samples" json:"num_samples"`
	NumChannels   int64     `db:"num_channels" json:"num_channels"`
	Checksum      string    `db:"checksum" json:"checksum"`
	ChecksumAlgo  string    `db:"checksum_algo" json:"checksum_algo"`
	IngestedAt    time.Time `db:"ingested_at" json:"ingested_at"`
}

// Key returns the dedup key of the record.
func (r *IngestionRecord) Key() ChunkKey {
	return ChunkKey{RecordingID: r.RecordingID, Start: r.ChunkStart}
}
