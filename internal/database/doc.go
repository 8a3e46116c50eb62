// Package database manages the TimescaleDB connection pool.
//
// Alert and sensor-reading history lands in two hypertables; the pool is
// shared by the batch writers.
package database
