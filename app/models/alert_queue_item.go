package models

import (
	"time"
)

// QueueItemStatus is the closed set of playback states. An item reaches
// playing exactly once and finished exactly once; finished is terminal.
type QueueItemStatus string

const (
	QueueItemQueued   QueueItemStatus = "queued"
	QueueItemPlaying  QueueItemStatus = "playing"
	QueueItemFinished QueueItemStatus = "finished"
)

// IsValid reports whether s is a known playback status.
func (s QueueItemStatus) IsValid() bool {
	switch s {
	case QueueItemQueued, QueueItemPlaying, QueueItemFinished:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether queued → playing → finished allows s → next.
func (s QueueItemStatus) CanTransitionTo(next QueueItemStatus) bool {
	switch {
	case s == QueueItemQueued && next == QueueItemPlaying:
		return true
	case s == QueueItemPlaying && next == QueueItemFinished:
		return true
	default:
		return false
	}
}

// AlertQueueItem is one instance of "play this alert for this streamer". The
// auto-incrementing ID defines arrival order; rows are kept for history.
type AlertQueueItem struct {
	ID            uint     `gorm:"primaryKey" json:"id"`
	StreamerID    uint     `gorm:"index;not null" json:"streamer_id"`
	Streamer      Streamer `gorm:"foreignKey:StreamerID" json:"-"`
	AlertID       uint     `gorm:"index;not null" json:"alert_id"`
	Alert         Alert    `gorm:"foreignKey:AlertID" json:"-"`
	TransactionID *string  `gorm:"type:char(36);index" json:"transaction_id,omitempty"`
	IsTest        bool     `gorm:"default:false;index" json:"is_test"`

	SenderName string `gorm:"type:varchar(60);default:''" json:"sender_name"`
	Message    string `gorm:"type:varchar(280);default:''" json:"message"`

	Status     QueueItemStatus `gorm:"type:varchar(10);default:'queued';index" json:"status"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	CreatedAt  time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
