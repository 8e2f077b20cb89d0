package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a hotel staff account. Role is one of manager, editor, viewer.
type User struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	FullName   string         `gorm:"type:varchar(255);not null" json:"full_name"`
	Email      string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password   string         `gorm:"type:varchar(255);not null" json:"-"` // bcrypt hash, never serialized
	Role       string         `gorm:"type:varchar(50);not null" json:"role"`
	HotelName  string         `gorm:"type:varchar(255)" json:"hotel_name"`
	Department string         `gorm:"type:varchar(255)" json:"department"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Identity returns the resolved caller tuple stamped onto records and requests.
func (u *User) Identity() Identity {
	id := u.ID
	return Identity{
		ID:          &id,
		DisplayName: u.FullName,
		Role:        u.Role,
		HotelName:   u.HotelName,
		Department:  u.Department,
	}
}

// RefreshToken stores long-lived tokens allowing users to request new access tokens
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
