package config

import (
	"fmt"
	"time"
)

// Requirements represents calculated resource requirements.
type Requirements struct {
	// Throughput
	SamplesPerSecond int64
	RowsPerDay       int64
	ChunksPerSecond  float64

	// Memory requirements
	ChunkBytes      int64
	InflightBytes   int64
	QueryCacheBytes int64
	TotalRAMBytes   int64

	// Storage requirements
	TableBytesPerDay int64
	IndexBytesPerDay int64
	LogBytesPerDay   int64
	HorizonBytes     int64

	// CPU estimate
	RecommendedCPUCores int
}

// Constants for calculations
const (
	// Bytes per stored sample row (ids, channel, offset, value, timestamp)
	bytesPerSampleRow = 64

	// Bytes per row for each of the two composite indexes
	bytesPerIndexRow = 48

	// Bytes per ingestion log row
	bytesPerLogRow = 200

	// Bytes per expanded sample while a chunk is in flight
	bytesPerExpandedSample = 96
)

// CalculateRequirements computes resource requirements based on configuration.
func (c *Config) CalculateRequirements() Requirements {
	r := Requirements{}

	// Samples per second across all streaming recordings
	perRecording := float64(c.Scale.Channels) * c.Scale.SamplingRate
	r.SamplesPerSecond = int64(perRecording * float64(c.Scale.Recordings))
	r.RowsPerDay = r.SamplesPerSecond * 86400

	chunkSec := c.Scale.ChunkDuration.Seconds()
	if chunkSec > 0 {
		r.ChunksPerSecond = float64(c.Scale.Recordings) / chunkSec
	}

	// -------------------------------------------------------------------------
	// Memory Requirements
	// -------------------------------------------------------------------------

	r.ChunkBytes = int64(perRecording * chunkSec * bytesPerExpandedSample)

	inflight := c.Backpressure.MaxInflight
	if !c.Backpressure.Enabled || inflight <= 0 {
		inflight = c.Scale.Recordings
	}
	r.InflightBytes = int64(inflight) * r.ChunkBytes

	r.QueryCacheBytes = parseMemoryLimit(c.Database.MemoryLimit)

	r.TotalRAMBytes = r.InflightBytes + r.QueryCacheBytes
	// Add 1GB for OS and Go runtime
	r.TotalRAMBytes += 1024 * 1024 * 1024

	// -------------------------------------------------------------------------
	// Storage Requirements
	// -------------------------------------------------------------------------

	r.TableBytesPerDay = r.RowsPerDay * bytesPerSampleRow
	r.IndexBytesPerDay = r.RowsPerDay * bytesPerIndexRow * 2
	r.LogBytesPerDay = int64(r.ChunksPerSecond * 86400 * bytesPerLogRow)

	horizonDays := float64(c.Scale.Horizon) / float64(24*time.Hour)
	perDay := r.TableBytesPerDay + r.IndexBytesPerDay + r.LogBytesPerDay
	r.HorizonBytes = int64(float64(perDay) * horizonDays)

	// -------------------------------------------------------------------------
	// CPU Requirements
	// -------------------------------------------------------------------------

	// Rough estimate: 1 core per 200k rows/sec of ingest plus one for queries
	r.RecommendedCPUCores = int(r.SamplesPerSecond/200000) + 2

	return r
}

// FormatRequirements returns a human-readable summary of requirements.
func (r *Requirements) FormatRequirements() string {
	return fmt.Sprintf(`Resource Requirements
=====================

Throughput:
  Samples/sec:       %s
  Rows/day:          %s
  Chunks/sec:        %.2f

Memory:
  Chunk (expanded):  %s
  In-flight chunks:  %s
  Query Cache:       %s
  Total RAM:         %s (recommended)

Storage:
  Samples/day:       %s
  Indexes/day:       %s
  Ingestion log/day: %s
  Horizon total:     %s (recommended)

CPU:
  Recommended Cores: %d
`,
		formatNumber(r.SamplesPerSecond),
		formatNumber(r.RowsPerDay),
		r.ChunksPerSecond,
		formatBytes(r.ChunkBytes),
		formatBytes(r.InflightBytes),
		formatBytes(r.QueryCacheBytes),
		formatBytes(r.TotalRAMBytes),
		formatBytes(r.TableBytesPerDay),
		formatBytes(r.IndexBytesPerDay),
		formatBytes(r.LogBytesPerDay),
		formatBytes(r.HorizonBytes),
		r.RecommendedCPUCores,
	)
}

// parseMemoryLimit parses a memory limit string like "2GB" into bytes.
func parseMemoryLimit(s string) int64 {
	if s == "" {
		return 2 * 1024 * 1024 * 1024 // Default 2GB
	}

	var value int64
	var unit string
	_, err := fmt.Sscanf(s, "%d%s", &value, &unit)
	if err != nil {
		// Try without space
		for i, c := range s {
			if c < '0' || c > '9' {
				fmt.Sscanf(s[:i], "%d", &value)
				unit = s[i:]
				break
			}
		}
	}

	switch unit {
	case "B", "b", "":
		return value
	case "KB", "kb", "K", "k":
		return value * 1024
	case "MB", "mb", "M", "m":
		return value * 1024 * 1024
	case "GB", "gb", "G", "g":
		return value * 1024 * 1024 * 1024
	case "TB", "tb", "T", "t":
		return value * 1024 * 1024 * 1024 * 1024
	default:
		return value
	}
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats a number with thousand separators.
func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	if n < 1000000000 {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
	return fmt.Sprintf("%.1fB", float64(n)/1000000000)
}
