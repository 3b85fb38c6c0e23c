package types

// RecordingSummary is derived by aggregation over stored samples.
type RecordingSummary struct {
	PatientID    string   `json:"patient_id"`
	RecordingID  string   `json:"recording_id"`
	Channels     []string `json:"channels"`
	ChannelCount int      `json:"channel_count"`
	SampleCount  int64    `json:"total_samples"`
	StartOffset  float64  `json:"start_sec"`
	EndOffset    float64  `json:"end_sec"`

	// ChunkCount comes from the ingestion log.
	ChunkCount int64 `json:"chunk_count"`
}

// Duration returns the covered time span in seconds.
func (s *RecordingSummary) Duration() float64 {
	return s.EndOffset - s.StartOffset
}

// PatientSummary aggregates every recording of one patient.
type PatientSummary struct {
	PatientID   string             `json:"patient_id"`
	Channels    []string           `json:"channels"`
	SampleCount int64              `json:"total_samples"`
	Recordings  []RecordingSummary `json:"recordings"`
}
