package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Widget pacing defaults applied when a streamer never touched their settings.
const (
	DefaultAlertDurationSec = 5
	DefaultStartDelaySec    = 0
	DefaultBetweenDelaySec  = 1
	DefaultWidgetPosition   = "center"
)

// StreamerSettings stores per-streamer widget pacing, the widget public key,
// the dashboard API key and the payment-provider linkage.
type StreamerSettings struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	StreamerID uint   `gorm:"uniqueIndex" json:"streamer_id"`
	PublicKey  string `gorm:"type:char(36);uniqueIndex;not null" json:"public_key"`

	// Mercado Pago linkage. An empty token means the platform collects and
	// the flat platform rate applies.
	MPAccessTokenEnc string `gorm:"type:text" json:"-"`
	MPUserID         string `gorm:"type:varchar(64);default:''" json:"-"`
	CommissionBps    *int64 `json:"commission_bps,omitempty"`

	// Widget pacing configuration.
	AlertDurationSec int    `gorm:"default:5" json:"alert_duration_sec"`
	StartDelaySec    int    `gorm:"default:0" json:"start_delay_sec"`
	BetweenDelaySec  int    `gorm:"default:1" json:"between_delay_sec"`
	Position         string `gorm:"type:varchar(20);default:'center'" json:"position"`

	APIKeyHash       string         `gorm:"type:char(64);default:'';index" json:"-"`
	APIKeyPrefix     string         `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	APIKeyCreatedAt  *time.Time     `json:"api_key_created_at"`
	APIKeyLastUsedAt *time.Time     `json:"api_key_last_used_at"`
	APIKeyRevokedAt  *time.Time     `json:"api_key_revoked_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "apx_"

// GetOrCreateStreamerSettings returns existing settings or creates defaults.
// A fresh row always carries a new widget public key.
func GetOrCreateStreamerSettings(db *gorm.DB, streamerID uint) (*StreamerSettings, error) {
	var ss StreamerSettings
	if err := db.Where("streamer_id = ?", streamerID).First(&ss).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			ss = StreamerSettings{
				StreamerID:       streamerID,
				PublicKey:        uuid.New().String(),
				AlertDurationSec: DefaultAlertDurationSec,
				StartDelaySec:    DefaultStartDelaySec,
				BetweenDelaySec:  DefaultBetweenDelaySec,
				Position:         DefaultWidgetPosition,
			}
			if err := db.Create(&ss).Error; err != nil {
				return nil, err
			}
			return &ss, nil
		}
		return nil, err
	}
	return &ss, nil
}

// HasConnectedAccount reports whether the streamer linked their own
// Mercado Pago account (marketplace mode).
func (ss *StreamerSettings) HasConnectedAccount() bool {
	return ss != nil && ss.MPAccessTokenEnc != ""
}

// HasActiveAPIKey reports whether the streamer has an active API key configured.
func (ss *StreamerSettings) HasActiveAPIKey() bool {
	return ss != nil && ss.APIKeyHash != "" && ss.APIKeyRevokedAt == nil
}

// IssueAPIKey generates a new API key, persists metadata on the struct, and
// returns the raw secret. Callers must save the struct afterwards.
func (ss *StreamerSettings) IssueAPIKey() (string, error) {
	secret := make([]byte, 20)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	rawKey := apiKeyPrefix + strings.ToLower(apiKeyEncoding.EncodeToString(secret))
	now := time.Now()
	ss.APIKeyHash = HashAPIKey(rawKey)
	ss.APIKeyPrefix = rawKey[:len(apiKeyPrefix)+4]
	ss.APIKeyCreatedAt = &now
	ss.APIKeyRevokedAt = nil
	ss.APIKeyLastUsedAt = nil
	return rawKey, nil
}

// RevokeAPIKey clears the stored API key metadata without deleting the record.
func (ss *StreamerSettings) RevokeAPIKey() {
	ss.APIKeyHash = ""
	ss.APIKeyPrefix = ""
	now := time.Now()
	ss.APIKeyRevokedAt = &now
	ss.APIKeyLastUsedAt = nil
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RotatePublicKey replaces the widget public key (invalidates open widgets).
func (ss *StreamerSettings) RotatePublicKey() {
	ss.PublicKey = uuid.New().String()
}

// PacingSummary is used by log lines when a widget connects.
func (ss *StreamerSettings) PacingSummary() string {
	return fmt.Sprintf("duration=%ds start=%ds between=%ds pos=%s",
		ss.AlertDurationSec, ss.StartDelaySec, ss.BetweenDelaySec, ss.Position)
}
