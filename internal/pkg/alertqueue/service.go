package alertqueue

import (
	"context"
	"errors"
	"time"

	"github.com/AlertaPix/alertapix/app/models"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Test-alert injections per streamer within the rolling window.
const (
	TestAlertLimit  = 10
	TestAlertWindow = time.Hour
)

var (
	// ErrInvalidPublicKey means no streamer matches the presented widget key.
	ErrInvalidPublicKey = errors.New("invalid widget public key")
	// ErrNotOwner means the target item or alert belongs to another streamer.
	ErrNotOwner = errors.New("resource belongs to another streamer")
	// ErrInvalidStatus means the requested transition is outside
	// queued → playing → finished.
	ErrInvalidStatus = errors.New("invalid queue item status")
	// ErrRateLimited means the rolling test-alert window is exhausted.
	ErrRateLimited = errors.New("test alert rate limit reached")
	// ErrAlertNotFound means the referenced alert does not exist.
	ErrAlertNotFound = errors.New("alert not found")
)

// Service owns the per-streamer alert queue: inserts from the reconciler and
// the test path, reads and status writes from the widget.
type Service struct {
	repo   Repository
	events Publisher
}

// NewService creates an alert-queue service.
func NewService(repo Repository, events Publisher) *Service {
	return &Service{repo: repo, events: events}
}

// NewServiceFromDB binds the service to the shared DB handle and Redis feed.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), NewRedisFeed())
}

// EnqueueFromTransaction inserts the playable alert for a captured payment.
// Called by the webhook reconciler after the ledger write committed.
func (s *Service) EnqueueFromTransaction(ctx context.Context, tx *models.Transaction) error {
	txID := tx.ID
	item := &models.AlertQueueItem{
		StreamerID:    tx.StreamerID,
		AlertID:       tx.AlertID,
		TransactionID: &txID,
		IsTest:        false,
		SenderName:    tx.SenderName,
		Message:       tx.Message,
		Status:        models.QueueItemQueued,
	}
	return s.insert(ctx, item)
}

// EnqueueTest inserts a synthetic item so a streamer can verify their widget.
// The caller must already be authenticated as streamerID.
func (s *Service) EnqueueTest(ctx context.Context, streamerID uint, alertID uint) (*models.AlertQueueItem, error) {
	alert, err := s.repo.GetAlert(alertID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	if alert.StreamerID != streamerID {
		return nil, ErrNotOwner
	}

	count, err := s.repo.CountRecentTestItems(streamerID, time.Now().Add(-TestAlertWindow))
	if err != nil {
		return nil, err
	}
	if count >= TestAlertLimit {
		return nil, ErrRateLimited
	}

	item := &models.AlertQueueItem{
		StreamerID: streamerID,
		AlertID:    alertID,
		IsTest:     true,
		SenderName: "Teste",
		Message:    "Alerta de teste",
		Status:     models.QueueItemQueued,
	}
	if err := s.insert(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) insert(ctx context.Context, item *models.AlertQueueItem) error {
	if err := s.repo.CreateItem(item); err != nil {
		return err
	}
	// The realtime push is best-effort; the widget's load-on-connect picks
	// up anything a dead feed dropped.
	if err := s.events.PublishInserted(ctx, eventFromItem(item)); err != nil {
		log.Warnf("[AlertQueue] realtime publish failed for item %d: %v", item.ID, err)
	}
	return nil
}

// ResolveSettings maps a widget public key to the streamer's settings.
func (s *Service) ResolveSettings(ctx context.Context, publicKey string) (*models.StreamerSettings, error) {
	settings, err := s.repo.GetSettingsByPublicKey(publicKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidPublicKey
		}
		return nil, err
	}
	return settings, nil
}

// ListQueued returns the still-queued items for the streamer behind the
// public key, in arrival order. This is the widget's (re)connect load.
func (s *Service) ListQueued(ctx context.Context, publicKey string) ([]models.AlertQueueItem, error) {
	settings, err := s.ResolveSettings(ctx, publicKey)
	if err != nil {
		return nil, err
	}
	return s.repo.ListQueued(settings.StreamerID)
}

// GetAlert loads the alert content a queue item refers to, scoped to the
// streamer behind the public key.
func (s *Service) GetAlert(ctx context.Context, publicKey string, alertID uint) (*models.Alert, error) {
	settings, err := s.ResolveSettings(ctx, publicKey)
	if err != nil {
		return nil, err
	}
	alert, err := s.repo.GetAlert(alertID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	if alert.StreamerID != settings.StreamerID {
		return nil, ErrNotOwner
	}
	return alert, nil
}

// UpdateStatusByPublicKey performs a widget-authorized status transition.
// Only playing and finished are reachable through this path; re-delivering a
// transition that already happened is acknowledged without a write.
func (s *Service) UpdateStatusByPublicKey(ctx context.Context, publicKey string, itemID uint, status models.QueueItemStatus) error {
	if status != models.QueueItemPlaying && status != models.QueueItemFinished {
		return ErrInvalidStatus
	}

	settings, err := s.ResolveSettings(ctx, publicKey)
	if err != nil {
		return err
	}

	item, err := s.repo.GetItem(itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return gorm.ErrRecordNotFound
		}
		return err
	}
	if item.StreamerID != settings.StreamerID {
		return ErrNotOwner
	}

	if item.Status == status {
		// Retried write of a transition that already landed.
		return nil
	}

	var from models.QueueItemStatus
	switch status {
	case models.QueueItemPlaying:
		from = models.QueueItemQueued
	case models.QueueItemFinished:
		from = models.QueueItemPlaying
	}

	updated, err := s.repo.TransitionStatus(itemID, from, status)
	if err != nil {
		return err
	}
	if !updated {
		// Lost a race with an identical write; the end state is the one the
		// caller asked for, so treat it as success.
		log.Debugf("[AlertQueue] no-op transition for item %d to %s", itemID, status)
	}
	return nil
}
