package checkout

import (
	"time"

	"github.com/AlertaPix/alertapix/app/models"
	"gorm.io/gorm"
)

// Repository provides the ledger operations used by the reconciler.
type Repository interface {
	GetTransaction(id string) (*models.Transaction, error)
	GetStreamerSettings(streamerID uint) (*models.StreamerSettings, error)
	// MarkPaid transitions a transaction to paid with the computed fee split
	// in one conditional write. It returns false when the row was already
	// paid, which is the duplicate-delivery signal.
	MarkPaid(id string, paymentID string, fees FeeBreakdown) (bool, error)
	// MarkFailed transitions pending → failed; paid rows are never touched.
	MarkFailed(id string, paymentID string) (bool, error)
	CreateTransaction(tx *models.Transaction) error
	CreateNotification(streamerID uint, content string, transactionID string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a checkout repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetTransaction(id string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.Where("id = ?", id).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *gormRepository) GetStreamerSettings(streamerID uint) (*models.StreamerSettings, error) {
	return models.GetOrCreateStreamerSettings(r.db, streamerID)
}

func (r *gormRepository) MarkPaid(id string, paymentID string, fees FeeBreakdown) (bool, error) {
	now := time.Now()
	res := r.db.Model(&models.Transaction{}).
		Where("id = ? AND status <> ?", id, models.TransactionPaid).
		Updates(map[string]interface{}{
			"status":             models.TransactionPaid,
			"mp_payment_id":      paymentID,
			"gross_cents":        fees.GrossCents,
			"provider_fee_cents": fees.ProviderFeeCents,
			"platform_fee_cents": fees.PlatformFeeCents,
			"net_cents":          fees.NetCents,
			"paid_at":            &now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) MarkFailed(id string, paymentID string) (bool, error) {
	res := r.db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TransactionPending).
		Updates(map[string]interface{}{
			"status":        models.TransactionFailed,
			"mp_payment_id": paymentID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) CreateTransaction(tx *models.Transaction) error {
	return r.db.Create(tx).Error
}

func (r *gormRepository) CreateNotification(streamerID uint, content string, transactionID string) error {
	return models.CreateNotification(r.db, streamerID, "sale", content, transactionID)
}
