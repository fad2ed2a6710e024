package overlay

import (
	"context"
	"time"

	"github.com/AlertaPix/alertapix/app/models"
	"github.com/AlertaPix/alertapix/internal/pkg/alertqueue"
)

// QueueStore adapts the alert-queue service to the consumer's Store, scoped
// by the widget public key. A browser widget speaks the same protocol over
// the HTTP surface in app/controllers; the two bindings must stay
// behaviorally identical.
type QueueStore struct {
	Service   *alertqueue.Service
	PublicKey string
}

func (s *QueueStore) Settings(ctx context.Context) (Settings, error) {
	settings, err := s.Service.ResolveSettings(ctx, s.PublicKey)
	if err != nil {
		return Settings{}, err
	}
	return SettingsFromModel(settings), nil
}

func (s *QueueStore) LoadQueued(ctx context.Context) ([]Item, error) {
	rows, err := s.Service.ListQueued(ctx, s.PublicKey)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(rows))
	for i := range rows {
		items = append(items, ItemFromModel(&rows[i]))
	}
	return items, nil
}

func (s *QueueStore) FetchAlert(ctx context.Context, alertID uint) (*AlertContent, error) {
	alert, err := s.Service.GetAlert(ctx, s.PublicKey, alertID)
	if err != nil {
		return nil, err
	}
	return &AlertContent{
		Title:      alert.Title,
		PriceCents: alert.PriceCents,
		MediaKind:  alert.MediaKind,
		MediaURL:   alert.MediaURL,
	}, nil
}

func (s *QueueStore) MarkPlaying(ctx context.Context, itemID uint) error {
	return s.Service.UpdateStatusByPublicKey(ctx, s.PublicKey, itemID, models.QueueItemPlaying)
}

func (s *QueueStore) MarkFinished(ctx context.Context, itemID uint) error {
	return s.Service.UpdateStatusByPublicKey(ctx, s.PublicKey, itemID, models.QueueItemFinished)
}

// QueueEvents adapts the Redis insertion feed to the consumer's Events.
type QueueEvents struct {
	Service    *alertqueue.Service
	Subscriber alertqueue.Subscriber
	PublicKey  string
}

func (e *QueueEvents) Subscribe(ctx context.Context) (<-chan Item, error) {
	settings, err := e.Service.ResolveSettings(ctx, e.PublicKey)
	if err != nil {
		return nil, err
	}
	events, err := e.Subscriber.Subscribe(ctx, settings.StreamerID)
	if err != nil {
		return nil, err
	}

	out := make(chan Item)
	go func() {
		defer close(out)
		for event := range events {
			select {
			case out <- Item{
				ID:         event.ItemID,
				AlertID:    event.AlertID,
				SenderName: event.SenderName,
				Message:    event.Message,
				IsTest:     event.IsTest,
			}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// SettingsFromModel converts stored pacing settings, applying defaults for
// unset values.
func SettingsFromModel(ss *models.StreamerSettings) Settings {
	duration := ss.AlertDurationSec
	if duration <= 0 {
		duration = models.DefaultAlertDurationSec
	}
	between := ss.BetweenDelaySec
	if between < 0 {
		between = models.DefaultBetweenDelaySec
	}
	start := ss.StartDelaySec
	if start < 0 {
		start = models.DefaultStartDelaySec
	}
	position := ss.Position
	if position == "" {
		position = models.DefaultWidgetPosition
	}
	return Settings{
		ImageDuration: time.Duration(duration) * time.Second,
		StartDelay:    time.Duration(start) * time.Second,
		BetweenDelay:  time.Duration(between) * time.Second,
		Position:      position,
	}
}

// ItemFromModel converts a stored queue row to the consumer's local view.
func ItemFromModel(item *models.AlertQueueItem) Item {
	return Item{
		ID:         item.ID,
		AlertID:    item.AlertID,
		SenderName: item.SenderName,
		Message:    item.Message,
		IsTest:     item.IsTest,
	}
}
