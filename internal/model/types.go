package model

import "github.com/google/uuid"

// -----------------------------------------------------------------------------
// Enumerations
// -----------------------------------------------------------------------------

// Severity classifies how urgent an alert is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Valid reports whether s is one of the known severity levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// AlertStatus tracks an alert through its lifecycle.
type AlertStatus string

const (
	AlertActive        AlertStatus = "active"
	AlertAcknowledged  AlertStatus = "acknowledged"
	AlertInvestigating AlertStatus = "investigating"
	AlertResolved      AlertStatus = "resolved"
	AlertFalsePositive AlertStatus = "false_positive"
)

// SensorStatus is the operational state of a sensor.
type SensorStatus string

const (
	SensorOnline      SensorStatus = "online"
	SensorOffline     SensorStatus = "offline"
	SensorDegraded    SensorStatus = "degraded"
	SensorMaintenance SensorStatus = "maintenance"
	SensorFault       SensorStatus = "fault"
)

// -----------------------------------------------------------------------------
// Event records
// -----------------------------------------------------------------------------

// Alert is a platform alert as delivered over the realtime feed.
type Alert struct {
	ID          uuid.UUID   // Primary key assigned by the platform
	SiteID      uuid.UUID   // Site the alert belongs to
	SensorID    uuid.UUID   // Triggering sensor (zero when manual/system)
	AlertCode   string      // Machine-readable code (e.g. "GAS_THRESHOLD")
	Title       string      // Display title
	Severity    Severity    // critical/high/medium/low/info
	Status      AlertStatus // Lifecycle status
	TriggeredAt int64       // Trigger time (µs since epoch)
	ReceivedAt  int64       // Local receive time (µs since epoch)
}

// SensorReading is a single sensor measurement set.
type SensorReading struct {
	SensorUID  string             // Stable sensor identifier (e.g. "VIB-NORTH-04")
	SiteID     uuid.UUID          // Owning site
	Values     map[string]float64 // Metric name -> value
	Quality    float64            // Data quality score, 0-100
	MeasuredAt int64              // Measurement time (µs since epoch)
	ReceivedAt int64              // Local receive time (µs since epoch)
}

// SafetyEvent is a safety-critical notification (emergency stop, override).
type SafetyEvent struct {
	Event      string    // Event name (e.g. "emergency_stop")
	SiteID     uuid.UUID // Affected site (zero for platform-wide)
	Detail     string    // Free-form description
	Priority   string    // Always "critical" for safety traffic
	ReceivedAt int64     // Local receive time (µs since epoch)
}

// -----------------------------------------------------------------------------
// Dashboard snapshot
// -----------------------------------------------------------------------------

// DashboardStats is the aggregate snapshot returned by the dashboard endpoint.
type DashboardStats struct {
	TotalSites         int     `json:"total_sites"`
	ActiveSites        int     `json:"active_sites"`
	TotalSensors       int     `json:"total_sensors"`
	OnlineSensors      int     `json:"online_sensors"`
	OfflineSensors     int     `json:"offline_sensors"`
	ActiveAlerts       int     `json:"active_alerts"`
	CriticalAlerts     int     `json:"critical_alerts"`
	HighAlerts         int     `json:"high_alerts"`
	OverallHealthScore float64 `json:"overall_health_score"`
	OverallRiskScore   float64 `json:"overall_risk_score"`
	AlertsLast24h      int     `json:"alerts_last_24h"`
	IncidentsLast7d    int     `json:"incidents_last_7d"`
}

// SiteHealth summarizes one site's condition for the dashboard site list.
type SiteHealth struct {
	SiteID         uuid.UUID `json:"site_id"`
	SiteName       string    `json:"site_name"`
	SiteCode       string    `json:"site_code"`
	Domain         string    `json:"domain"`
	HealthScore    float64   `json:"health_score"`
	RiskScore      float64   `json:"risk_score"`
	TotalSensors   int       `json:"total_sensors"`
	OnlineSensors  int       `json:"online_sensors"`
	ActiveAlerts   int       `json:"active_alerts"`
	CriticalAlerts int       `json:"critical_alerts"`
	LastIncident   string    `json:"last_incident,omitempty"`
}
