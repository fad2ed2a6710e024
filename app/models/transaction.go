package models

import (
	"time"
)

// TransactionStatus is the closed set of ledger states. Pending moves to paid
// or failed exactly once; paid is terminal and never overwritten.
type TransactionStatus string

const (
	TransactionPending TransactionStatus = "pending"
	TransactionPaid    TransactionStatus = "paid"
	TransactionFailed  TransactionStatus = "failed"
)

// IsValid reports whether s is a known ledger status.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionPending, TransactionPaid, TransactionFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s permits no further transition.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionPaid || s == TransactionFailed
}

// CanTransitionTo reports whether the monotonic state machine allows s → next.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return s == TransactionPending && (next == TransactionPaid || next == TransactionFailed)
}

// Transaction is one purchase intent. The ID is generated client-side before
// the provider payment exists so it can travel as the external reference and
// correlate the webhook back to this row.
type Transaction struct {
	ID         string   `gorm:"type:char(36);primaryKey" json:"id"`
	StreamerID uint     `gorm:"index;not null" json:"streamer_id"`
	Streamer   Streamer `gorm:"foreignKey:StreamerID" json:"-"`
	AlertID    uint     `gorm:"index;not null" json:"alert_id"`
	Alert      Alert    `gorm:"foreignKey:AlertID" json:"-"`

	GrossCents       int64  `gorm:"not null" json:"gross_cents"`
	Currency         string `gorm:"type:char(3);default:'BRL'" json:"currency"`
	ProviderFeeCents int64  `gorm:"default:0" json:"provider_fee_cents"`
	PlatformFeeCents int64  `gorm:"default:0" json:"platform_fee_cents"`
	NetCents         int64  `gorm:"default:0" json:"net_cents"`

	// Application fee requested from the gateway at creation time for
	// connected accounts; the webhook recomputation stays authoritative.
	RequestedAppFeeCents int64 `gorm:"default:0" json:"requested_app_fee_cents"`

	Status      TransactionStatus `gorm:"type:varchar(10);default:'pending';index" json:"status"`
	SenderName  string            `gorm:"type:varchar(60);default:''" json:"sender_name"`
	Message     string            `gorm:"type:varchar(280);default:''" json:"message"`
	MPPaymentID *string           `gorm:"type:varchar(40);index" json:"mp_payment_id,omitempty"`
	PaidAt      *time.Time        `json:"paid_at,omitempty"`
	CreatedAt   time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}
