package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// Lead source and status constants for leads created from completed calls.
const (
	LeadSourcePhone     = "phone"
	LeadStatusContacted = "contacted"
)

// Lead represents a sales lead derived from a caller. Leads are deduplicated
// per owner by phone number.
type Lead struct {
	ID   string `json:"id" gorm:"column:id;primaryKey"`
	Name string `json:"name" gorm:"column:name" validate:"required"`
	// Phone is the dedup key; one lead per phone number per owner.
	Phone     string    `json:"phone" gorm:"column:phone;index:idx_leads_owner_phone,unique" validate:"required"`
	Email     string    `json:"email,omitempty" gorm:"column:email"`
	Source    string    `json:"source" gorm:"column:source"`
	Status    string    `json:"status" gorm:"column:status"`
	OwnerID   string    `json:"owner_id" gorm:"column:owner_id;index:idx_leads_owner_phone,unique" validate:"required"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM, respecting the Namer.
func (Lead) TableName(namer schema.Namer) string {
	return namer.TableName("leads")
}
