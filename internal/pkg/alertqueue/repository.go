package alertqueue

import (
	"time"

	"github.com/AlertaPix/alertapix/app/models"
	"gorm.io/gorm"
)

// Repository provides the queue-store operations used by the service.
type Repository interface {
	CreateItem(item *models.AlertQueueItem) error
	GetItem(id uint) (*models.AlertQueueItem, error)
	// ListQueued returns all still-queued items for a streamer ascending by
	// id, i.e. in arrival order.
	ListQueued(streamerID uint) ([]models.AlertQueueItem, error)
	// TransitionStatus performs the conditional status write and reports
	// whether a row actually changed.
	TransitionStatus(id uint, from, to models.QueueItemStatus) (bool, error)
	GetSettingsByPublicKey(publicKey string) (*models.StreamerSettings, error)
	GetAlert(id uint) (*models.Alert, error)
	// CountRecentTestItems counts is_test rows for a streamer enqueued since
	// the window start, for the rolling rate limit.
	CountRecentTestItems(streamerID uint, since time.Time) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an alert-queue repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateItem(item *models.AlertQueueItem) error {
	return r.db.Create(item).Error
}

func (r *gormRepository) GetItem(id uint) (*models.AlertQueueItem, error) {
	var item models.AlertQueueItem
	if err := r.db.Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *gormRepository) ListQueued(streamerID uint) ([]models.AlertQueueItem, error) {
	var items []models.AlertQueueItem
	err := r.db.
		Where("streamer_id = ? AND status = ?", streamerID, models.QueueItemQueued).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *gormRepository) TransitionStatus(id uint, from, to models.QueueItemStatus) (bool, error) {
	updates := map[string]interface{}{"status": to}
	now := time.Now()
	switch to {
	case models.QueueItemPlaying:
		updates["started_at"] = &now
	case models.QueueItemFinished:
		updates["finished_at"] = &now
	}

	res := r.db.Model(&models.AlertQueueItem{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) GetSettingsByPublicKey(publicKey string) (*models.StreamerSettings, error) {
	var ss models.StreamerSettings
	if err := r.db.Where("public_key = ?", publicKey).First(&ss).Error; err != nil {
		return nil, err
	}
	return &ss, nil
}

func (r *gormRepository) GetAlert(id uint) (*models.Alert, error) {
	var alert models.Alert
	if err := r.db.Where("id = ?", id).First(&alert).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *gormRepository) CountRecentTestItems(streamerID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.AlertQueueItem{}).
		Where("streamer_id = ? AND is_test = ? AND created_at >= ?", streamerID, true, since).
		Count(&count).Error
	return count, err
}
