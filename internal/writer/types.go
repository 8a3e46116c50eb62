package writer

import (
	"time"
)

// WriterConfig holds common configuration for batch writers.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: 5 * time.Second,
	}
}

// WriterMetrics tracks writer activity.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}

// alertRow represents a row to be inserted into the alerts table.
type alertRow struct {
	ID          string // UUID
	SiteID      string // UUID
	SensorID    string // UUID
	AlertCode   string
	Title       string
	Severity    string
	Status      string
	TriggeredAt int64 // Microseconds
	ReceivedAt  int64 // Microseconds
}

// readingRow represents a row to be inserted into the sensor_readings table.
type readingRow struct {
	SensorUID  string
	SiteID     string // UUID
	Values     []byte // JSON object of channel -> value
	Quality    float64
	MeasuredAt int64 // Microseconds
	ReceivedAt int64 // Microseconds
}
