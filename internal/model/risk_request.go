package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Request statuses. pending is initial; approved and rejected are terminal.
// The only transition back to pending is the workflow's own compensating
// rollback when promotion fails — never a user action.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// RiskRequest is a staff-submitted proposal awaiting manager review. Requests
// are never deleted; they persist forever in their terminal state for audit.
type RiskRequest struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FullName     string    `gorm:"type:varchar(255);not null" json:"full_name"`
	FullNameNorm string    `gorm:"type:varchar(255);not null;index" json:"full_name_norm"`
	RiskLevel    string    `gorm:"type:varchar(20);not null" json:"risk_level"`
	Summary      string    `gorm:"type:text;not null" json:"summary"`
	HotelName    string    `gorm:"type:varchar(255)" json:"hotel_name"`
	Department   string    `gorm:"type:varchar(255)" json:"department"`
	Status       string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	// Submitter identity snapshot. Opaque reference plus display fields; no
	// global uniqueness assumed.
	CreatedByID         *uuid.UUID `gorm:"type:uuid" json:"created_by_id"`
	CreatedByName       string     `gorm:"type:varchar(255)" json:"created_by_name"`
	CreatedByRole       string     `gorm:"type:varchar(50)" json:"created_by_role"`
	CreatedByHotel      string     `gorm:"type:varchar(255)" json:"created_by_hotel"`
	CreatedByDepartment string     `gorm:"type:varchar(255)" json:"created_by_department"`

	// Reviewer stamp, set only on transition out of pending.
	ReviewedByID   *uuid.UUID `gorm:"type:uuid" json:"reviewed_by_id"`
	ReviewedByName string     `gorm:"type:varchar(255)" json:"reviewed_by_name"`
	ReviewedAt     *time.Time `json:"reviewed_at"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *RiskRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
