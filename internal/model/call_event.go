package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// CallEvent is an append-only audit record of every webhook event received
// for a call, stored with its raw payload.
type CallEvent struct {
	ID int64 `json:"-" gorm:"column:id;primaryKey;autoIncrement"`
	// CallID references the internal Call row the event was applied to.
	CallID    string         `json:"call_id" gorm:"column:call_id;index" validate:"required"`
	EventType string         `json:"event_type" gorm:"column:event_type;index" validate:"required"`
	Data      datatypes.JSON `json:"data,omitempty" gorm:"type:jsonb;column:data"`
	OwnerID   string         `json:"owner_id" gorm:"column:owner_id"`
	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM, respecting the Namer.
func (CallEvent) TableName(namer schema.Namer) string {
	return namer.TableName("call_events")
}
