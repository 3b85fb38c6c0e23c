// Package storage wires the EEG sample store into a single service.
//
// Architecture:
//
//	┌─────────────┐     ┌──────────────┐     ┌──────────────┐
//	│  Admission  │────▶│  Ingestion   │────▶│    Store     │
//	│ (backpress.)│     │ Coordinator  │     │ DuckDB/SQLite│
//	└─────────────┘     └──────────────┘     └──────────────┘
//	                                                │
//	                    ┌──────────────┬────────────┼─────────────┐
//	                    ▼              ▼            ▼             ▼
//	              ┌──────────┐   ┌──────────┐  ┌─────────┐  ┌──────────┐
//	              │  Query   │   │ Catalog  │  │ Archive │──│ S3 (opt) │
//	              │  Engine  │   │          │  │ Parquet │  └──────────┘
//	              └──────────┘   └──────────┘  └─────────┘
//
// Chunks are accepted exactly once per (recording, chunk start). Each
// accepted chunk is expanded into per-channel samples and written in one
// transaction together with its ingestion log entry. Windows are read back
// grouped by channel with optional DDSketch statistics; catalog queries
// aggregate over stored samples; recordings can be exported to Parquet.
package storage
