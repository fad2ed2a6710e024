package models

import (
	"time"

	"gorm.io/gorm"
)

// Media kinds determine how the widget decides playback completion: audio and
// video finish with the media, images run for the configured display duration.
const (
	MediaKindAudio = "audio"
	MediaKindVideo = "video"
	MediaKindImage = "image"
)

// Alert is a sellable alert a streamer configured: a media clip plus a price.
type Alert struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	StreamerID uint           `gorm:"index;not null" json:"streamer_id"`
	Streamer   Streamer       `gorm:"foreignKey:StreamerID" json:"-"`
	Title      string         `gorm:"type:varchar(120);not null" json:"title"`
	PriceCents int64          `gorm:"not null" json:"price_cents"`
	Currency   string         `gorm:"type:char(3);default:'BRL'" json:"currency"`
	MediaKind  string         `gorm:"type:varchar(10);not null" json:"media_kind" validate:"oneof=audio video image"`
	MediaURL   string         `gorm:"type:varchar(500);not null" json:"media_url"`
	IsActive   bool           `gorm:"default:true;index" json:"is_active"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}
