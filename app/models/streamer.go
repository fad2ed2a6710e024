package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	STATUS_ACTIVE   = "active"
	STATUS_DISABLED = "disabled"

	ROLE_STREAMER = "streamer"
	ROLE_ADMIN    = "admin"
)

// Streamer is an account that sells alerts and receives PIX payouts.
type Streamer struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"type:varchar(100);not null" json:"name"`
	Handle    string         `gorm:"type:varchar(60);uniqueIndex;not null" json:"handle"`
	Email     string         `gorm:"type:varchar(191);uniqueIndex;not null" json:"email"`
	Role      string         `gorm:"type:varchar(20);default:'streamer'" json:"role"`
	Status    string         `gorm:"type:varchar(20);default:'active';index" json:"status"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (s *Streamer) IsActive() bool {
	return s.Status == STATUS_ACTIVE
}
