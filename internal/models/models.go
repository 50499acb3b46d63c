package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GpsSample is one immutable location reading submitted by a runner's device.
// SpeedMps is optional; nil means the device did not report a speed and it
// must be inferred from distance and time.
type GpsSample struct {
	Loc       Coord     `json:"loc"`
	AccuracyM float64   `json:"accuracy_m"`
	SpeedMps  *float64  `json:"speed_mps,omitempty"`
	AltitudeM *float64  `json:"altitude_m,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Path lifecycle states. A path is append-only while open and immutable
// once it reaches either closed state.
const (
	PathOpen      = "open"
	PathCompleted = "completed"
	PathRejected  = "rejected"
)

type CapturePath struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	TerritoryID string      `json:"territory_id"`
	Status      string      `json:"status"`
	Samples     []GpsSample `json:"samples,omitempty"`
	PointsCount int         `json:"points_count"`
	StartedAt   time.Time   `json:"started_at"`
	EndedAt     *time.Time  `json:"ended_at,omitempty"`
}

// Territory is a named polygon region. Boundary is a closed simple ring of
// WGS84 coordinates; Difficulty is 1..5.
type Territory struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Difficulty int     `json:"difficulty"`
	BasePoints int     `json:"base_points"`
	Boundary   []Coord `json:"boundary"`
}

// Capture methods.
const (
	MethodPresence  = "presence"
	MethodPathTrace = "path_trace"
)

// TerritoryCapture is an ownership record. At most one capture per territory
// is active at any time; superseded captures are deactivated, never deleted.
type TerritoryCapture struct {
	ID            string     `json:"id"`
	TerritoryID   string     `json:"territory_id"`
	TeamID        string     `json:"team_id"`
	UserID        string     `json:"user_id"`
	Method        string     `json:"method"`
	Points        int        `json:"points"`
	Fortification int        `json:"fortification"`
	Active        bool       `json:"active"`
	CapturedAt    time.Time  `json:"captured_at"`
	LostAt        *time.Time `json:"lost_at,omitempty"`
}

// EnergyBalance is a per-user counter in [0, capacity]. LastReset is the
// start of the calendar day the balance was last reset on.
type EnergyBalance struct {
	UserID    string    `json:"user_id"`
	Remaining int       `json:"remaining"`
	LastReset time.Time `json:"last_reset"`
}

type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WeatherReading is the most recent recorded condition for a territory.
type WeatherReading struct {
	Condition  string    `json:"condition"`
	TempC      float64   `json:"temp_c"`
	RecordedAt time.Time `json:"recorded_at"`
}

// PresencePing is the location-report event published for every accepted
// path sample. The presence consumer folds these into the Redis index that
// backs the team-activity bonus.
type PresencePing struct {
	UserID string    `json:"user_id"`
	TeamID string    `json:"team_id"`
	Loc    Coord     `json:"loc"`
	At     time.Time `json:"at"`
}

// CaptureResult is the summary returned to the caller on a successful
// capture, via either method.
type CaptureResult struct {
	TerritoryName   string  `json:"territory_name"`
	TeamName        string  `json:"team_name"`
	Method          string  `json:"method"`
	CoveragePercent float64 `json:"coverage_percent,omitempty"`
	PathLengthM     float64 `json:"path_length_m,omitempty"`
	Points          int     `json:"points"`
}
