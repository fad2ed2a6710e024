package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification rows back the dashboard activity feed. Sale notifications are
// written by the webhook reconciler when a payment is captured.
type Notification struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	StreamerID  uint           `gorm:"index" json:"streamer_id"`
	Streamer    Streamer       `gorm:"foreignKey:StreamerID" json:"-"`
	Type        string         `gorm:"type:varchar(50)" json:"type" validate:"oneof=sale system"`
	Content     string         `gorm:"type:text" json:"content"`
	IsRead      bool           `gorm:"default:false" json:"is_read"`
	ReferenceID string         `gorm:"type:char(36);default:''" json:"reference_id"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// MarkAsRead flags a notification as seen in the dashboard.
func (n *Notification) MarkAsRead(db *gorm.DB) error {
	n.IsRead = true
	return db.Model(n).Update("is_read", true).Error
}

// CreateNotification writes a new notification row.
func CreateNotification(db *gorm.DB, streamerID uint, notificationType string, content string, referenceID string) error {
	notification := Notification{
		StreamerID:  streamerID,
		Type:        notificationType,
		Content:     content,
		ReferenceID: referenceID,
		IsRead:      false,
	}

	return db.Create(&notification).Error
}
