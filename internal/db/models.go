package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Location statuses shown on the dashboard. Informational only; the
// evaluator never derives them.
const (
	LocationStatusNormal  = "normal"
	LocationStatusWarning = "warning"
	LocationStatusAlert   = "alert"
)

// Alert types produced by the evaluator decision table.
const (
	AlertTypeFire        = "fire"
	AlertTypeGasLeak     = "gas_leak"
	AlertTypeTemperature = "temperature"
	AlertTypeMotion      = "motion"
)

// Alert severities. The evaluator only ever assigns critical; the lower
// grades exist for rows written by other tooling.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert statuses. Every status is reachable from every other via update.
const (
	AlertStatusActive     = "active"
	AlertStatusResolved   = "resolved"
	AlertStatusFalseAlarm = "false_alarm"
	AlertStatusInQueue    = "in_queue"
	AlertStatusUnsolved   = "unsolved"
)

// Location request statuses.
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// User types. Authority accounts manage locations and review requests.
const (
	UserTypeAuthority = "authority"
	UserTypeNormal    = "normal"
)

// Location represents a monitored site in the database
type Location struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	Region              string    `json:"region"`
	Latitude            float64   `json:"latitude"`
	Longitude           float64   `json:"longitude"`
	ThingSpeakChannelID string    `json:"thingspeak_channel_id"`
	ThingSpeakReadKey   *string   `json:"thingspeak_read_key"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
}

// SensorEnabled reports whether the location carries the channel
// credentials needed to reach the upstream sensor API.
func (l *Location) SensorEnabled() bool {
	return l.ThingSpeakChannelID != "" && l.ThingSpeakReadKey != nil && *l.ThingSpeakReadKey != ""
}

// Alert represents a detected incident in the database.
// SensorValues holds the triggering reading verbatim as JSON.
// LocationName is only populated by listing queries that join locations.
type Alert struct {
	ID           uuid.UUID       `json:"id"`
	LocationID   uuid.UUID       `json:"location_id"`
	AlertType    string          `json:"alert_type"`
	Severity     string          `json:"severity"`
	Status       string          `json:"status"`
	SensorValues json.RawMessage `json:"sensor_values"`
	Timestamp    time.Time       `json:"timestamp"`
	ResolvedAt   *time.Time      `json:"resolved_at"`
	ResolvedBy   *uuid.UUID      `json:"resolved_by"`
	LocationName string          `json:"location_name,omitempty"`
}

// Profile represents account metadata for a user
type Profile struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	FullName      string    `json:"full_name"`
	Phone         *string   `json:"phone"`
	AvatarURL     *string   `json:"avatar_url"`
	UserType      string    `json:"user_type"`
	AuthorityName *string   `json:"authority_name"`
	FireStation   *string   `json:"fire_station"`
	BadgeNumber   *string   `json:"badge_number"`
	Department    *string   `json:"department"`
	CreatedAt     time.Time `json:"created_at"`
}

// LocationRequest represents a pending request to add a monitoring site
type LocationRequest struct {
	ID                  uuid.UUID  `json:"id"`
	UserID              uuid.UUID  `json:"user_id"`
	LocationName        string     `json:"location_name"`
	Region              string     `json:"region"`
	Latitude            float64    `json:"latitude"`
	Longitude           float64    `json:"longitude"`
	ThingSpeakChannelID string     `json:"thingspeak_channel_id"`
	ThingSpeakReadKey   *string    `json:"thingspeak_read_key"`
	Reason              string     `json:"reason"`
	Status              string     `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	ReviewedAt          *time.Time `json:"reviewed_at"`
	ReviewedBy          *uuid.UUID `json:"reviewed_by"`
}

// ValidAlertStatus reports whether s is one of the enumerated alert
// statuses. Unrecognized values are rejected rather than written through.
func ValidAlertStatus(s string) bool {
	switch s {
	case AlertStatusActive, AlertStatusResolved, AlertStatusFalseAlarm, AlertStatusInQueue, AlertStatusUnsolved:
		return true
	}
	return false
}
