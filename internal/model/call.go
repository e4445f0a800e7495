package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// Call status constants. These are the only values persisted to the calls table.
const (
	CallStatusQueued     = "queued"
	CallStatusRinging    = "ringing"
	CallStatusInProgress = "in-progress"
	CallStatusCompleted  = "completed"
	CallStatusFailed     = "failed"
	CallStatusMissed     = "missed"
)

// Call direction constants.
const (
	CallDirectionInbound  = "inbound"
	CallDirectionOutbound = "outbound"
)

// Call represents a single voice call tracked across its webhook lifecycle.
// One row per provider call; events for the same ProviderCallID are reduced
// onto this row.
type Call struct {
	// ID is the internal primary key.
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// ProviderCallID is the provider-assigned call identifier used to
	// correlate webhook events.
	ProviderCallID string `json:"provider_call_id" gorm:"column:provider_call_id;uniqueIndex" validate:"required"`
	// PhoneNumber is the customer's phone number, empty when the provider
	// omits it.
	PhoneNumber string     `json:"phone_number" gorm:"column:phone_number;index"`
	CallerName  string     `json:"caller_name,omitempty" gorm:"column:caller_name"`
	Direction   string     `json:"direction" gorm:"column:direction" validate:"omitempty,oneof=inbound outbound"`
	Status      string     `json:"status" gorm:"column:status;index" validate:"required,oneof=queued ringing in-progress completed failed missed"`
	StartTime   *time.Time `json:"start_time,omitempty" gorm:"column:start_time"`
	EndTime     *time.Time `json:"end_time,omitempty" gorm:"column:end_time"`
	// Duration is the call length in whole seconds, computed at finalization.
	Duration     int      `json:"duration" gorm:"column:duration;default:0"`
	Transcript   string   `json:"transcript,omitempty" gorm:"column:transcript;type:text"`
	RecordingURL string   `json:"recording_url,omitempty" gorm:"column:recording_url" validate:"omitempty,url"`
	Cost         float64  `json:"cost" gorm:"column:cost;default:0"`
	AISummary    string   `json:"ai_summary,omitempty" gorm:"column:ai_summary;type:text"`
	Sentiment    string   `json:"sentiment,omitempty" gorm:"column:sentiment" validate:"omitempty,oneof=positive neutral negative"`
	AssistantID  string   `json:"assistant_id,omitempty" gorm:"column:assistant_id;index"`
	LeadID       *string  `json:"lead_id,omitempty" gorm:"column:lead_id;index"`
	// OwnerID identifies the account the call belongs to.
	OwnerID string `json:"owner_id" gorm:"column:owner_id;index" validate:"required"`
	// Version is the optimistic concurrency token; every successful update
	// increments it.
	Version   int       `json:"-" gorm:"column:version;default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM, respecting the Namer.
func (Call) TableName(namer schema.Namer) string {
	return namer.TableName("calls")
}

// MapProviderStatus normalizes a provider status string into one of the
// persisted call status values. Unrecognized statuses map to queued.
func MapProviderStatus(providerStatus string) string {
	switch providerStatus {
	case "ringing":
		return CallStatusRinging
	case "in-progress":
		return CallStatusInProgress
	case "ended":
		return CallStatusCompleted
	default:
		return CallStatusQueued
	}
}

// IsTerminalStatus reports whether a status represents a finished call.
func IsTerminalStatus(status string) bool {
	switch status {
	case CallStatusCompleted, CallStatusFailed, CallStatusMissed:
		return true
	}
	return false
}
