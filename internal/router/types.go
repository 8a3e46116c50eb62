package router

import (
	"time"

	"github.com/google/uuid"

	"github.com/minewatch/minewatch-data/internal/model"
)

// Config holds router configuration.
type Config struct {
	AlertBufferSize   int // Default: 1000
	ReadingBufferSize int // Default: 5000
	SafetyBufferSize  int // Default: 100
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		AlertBufferSize:   1000,
		ReadingBufferSize: 5000,
		SafetyBufferSize:  100,
	}
}

// AlertMsg is a parsed alert frame.
type AlertMsg struct {
	ID          uuid.UUID
	SiteID      uuid.UUID
	SensorID    uuid.UUID
	AlertCode   string
	Title       string
	Severity    model.Severity
	Status      model.AlertStatus
	TriggeredAt int64 // µs since epoch
	ReceivedAt  time.Time
}

// ReadingMsg is a parsed sensor_data frame.
type ReadingMsg struct {
	SensorUID  string
	SiteID     uuid.UUID
	Values     map[string]float64
	Quality    float64
	MeasuredAt int64 // µs since epoch
	ReceivedAt time.Time
}

// SafetyMsg is a parsed safety frame.
type SafetyMsg struct {
	Event      string
	SiteID     uuid.UUID
	Detail     string
	Priority   string
	ReceivedAt time.Time
}

// Wire types for JSON payload parsing

// alertWire is the data payload of an alert frame.
type alertWire struct {
	ID          string `json:"id"`
	SiteID      string `json:"site_id"`
	SensorID    string `json:"sensor_id"`
	AlertCode   string `json:"alert_code"`
	Title       string `json:"title"`
	Severity    string `json:"severity"`
	Status      string `json:"status"`
	TriggeredAt string `json:"triggered_at"` // RFC 3339
}

// readingWire is the data payload of a sensor_data frame.
type readingWire struct {
	SensorUID string             `json:"sensor_uid"`
	SiteID    string             `json:"site_id"`
	Values    map[string]float64 `json:"values"`
	Quality   float64            `json:"quality"`
	Timestamp string             `json:"timestamp"` // RFC 3339 measurement time
}

// safetyWire is the data payload of a safety frame.
type safetyWire struct {
	SiteID   string `json:"site_id"`
	Detail   string `json:"detail"`
	Priority string `json:"priority"`
}
