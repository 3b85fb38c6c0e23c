// Package types defines the core data types used throughout the storage system.
//
// Key types:
//   - Chunk: A time-contiguous batch of multi-channel samples from a producer
//   - Sample: A single stored (channel, time offset, value) point
//   - IngestionRecord: The audit entry written for every accepted chunk
//   - Window: A per-channel, time-ordered slice returned by a window query
//   - PatientRule: Derives the owning patient from a recording id
package types
