package types

import "time"

// Sample is one stored point. The tuple (PatientID, RecordingID, Channel,
// Offset) is unique because a chunk key is accepted at most once.
type Sample struct {
	// Identity
	PatientID   string `db:"patient_id"`
	RecordingID string `db:"recording_id"`
	Channel     string `db:"channel"`

	// Offset is seconds since recording start.
	Offset float64 `db:"time_offset"`

	// Value in physical units (microvolts for EEG).
	Value float64 `db:"value"`

	// IngestedAt is the wall-clock time of the accepting transaction (UTC).
	IngestedAt time.Time `db:"ingested_at"`
}
