// Package writer implements batch writers for routed frames.
//
// Writers:
//   - Alert writer (TimescaleDB)
//   - Sensor reading writer (TimescaleDB)
//
// All writers use append-only semantics (never update, only insert).
// Timestamps are stored as integer microseconds since the epoch.
package writer
