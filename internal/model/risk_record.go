package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Risk levels attached to records and requests, ordered by severity.
// They are display tiers only and are never compared numerically.
const (
	RiskLevelInfo     = "bilgi"
	RiskLevelCaution  = "dikkat"
	RiskLevelCritical = "kritik"
)

// SummaryPlaceholder replaces a blank summary so a record is never stored
// with an empty note.
const SummaryPlaceholder = "no note provided"

// ValidRiskLevel reports whether level is one of the three known tiers.
func ValidRiskLevel(level string) bool {
	return level == RiskLevelInfo || level == RiskLevelCaution || level == RiskLevelCritical
}

// RiskRecord is the durable, queryable guest pre-check record. Records are
// immutable after creation; the only lifecycle operation is deletion, which
// always archives first.
type RiskRecord struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FullName      string     `gorm:"type:varchar(255);not null" json:"full_name"`
	FullNameNorm  string     `gorm:"type:varchar(255);not null;index" json:"full_name_norm"` // derived from FullName at creation, never edited
	HotelName     string     `gorm:"type:varchar(255)" json:"hotel_name"`
	Department    string     `gorm:"type:varchar(255)" json:"department"`
	RiskLevel     string     `gorm:"type:varchar(20);not null" json:"risk_level"`
	Summary       string     `gorm:"type:text;not null" json:"summary"`
	CreatedByID   *uuid.UUID `gorm:"type:uuid" json:"created_by_id"`
	CreatedByName string     `gorm:"type:varchar(255)" json:"created_by_name"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
}

func (r *RiskRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// DeletionArchive is the write-once copy of a RiskRecord taken in the same
// transaction that removes the record from the active set. An archive entry
// for an id is proof the record once existed and was deliberately removed.
type DeletionArchive struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RecordID        uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"record_id"`
	FullName        string     `gorm:"type:varchar(255);not null" json:"full_name"`
	FullNameNorm    string     `gorm:"type:varchar(255);not null" json:"full_name_norm"`
	HotelName       string     `gorm:"type:varchar(255)" json:"hotel_name"`
	Department      string     `gorm:"type:varchar(255)" json:"department"`
	RiskLevel       string     `gorm:"type:varchar(20);not null" json:"risk_level"`
	Summary         string     `gorm:"type:text;not null" json:"summary"`
	RecordCreatedAt time.Time  `json:"record_created_at"`
	CreatedByName   string     `gorm:"type:varchar(255)" json:"created_by_name"`
	DeletedByID     *uuid.UUID `gorm:"type:uuid" json:"deleted_by_id"`
	DeletedByName   string     `gorm:"type:varchar(255)" json:"deleted_by_name"`
	DeletedAt       time.Time  `gorm:"autoCreateTime;index" json:"deleted_at"`
}

func (a *DeletionArchive) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
