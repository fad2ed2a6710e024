package alertqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AlertaPix/alertapix/app/models"
	"github.com/AlertaPix/alertapix/internal/pkg/cache"
	"github.com/gofiber/fiber/v2/log"
)

const eventChannelPrefix = "alert_queue:events:"

// QueueEvent is the realtime insertion notification pushed to open widgets.
// Delivery is at-most-once per connection; the initial load on (re)connect is
// the durability backstop.
type QueueEvent struct {
	ItemID        uint      `json:"item_id"`
	StreamerID    uint      `json:"streamer_id"`
	AlertID       uint      `json:"alert_id"`
	TransactionID *string   `json:"transaction_id,omitempty"`
	IsTest        bool      `json:"is_test"`
	SenderName    string    `json:"sender_name"`
	Message       string    `json:"message"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// EventChannel returns the Redis pub/sub channel for one streamer's queue.
func EventChannel(streamerID uint) string {
	return fmt.Sprintf("%s%d", eventChannelPrefix, streamerID)
}

// Publisher pushes queue insertion events to the realtime channel.
type Publisher interface {
	PublishInserted(ctx context.Context, event QueueEvent) error
}

// Subscriber delivers queue insertion events for one streamer until the
// context is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, streamerID uint) (<-chan QueueEvent, error)
}

// RedisFeed implements Publisher and Subscriber over the shared Redis client.
type RedisFeed struct{}

// NewRedisFeed creates the Redis-backed realtime feed.
func NewRedisFeed() *RedisFeed {
	return &RedisFeed{}
}

func (f *RedisFeed) PublishInserted(ctx context.Context, event QueueEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return cache.Publish(ctx, EventChannel(event.StreamerID), payload)
}

func (f *RedisFeed) Subscribe(ctx context.Context, streamerID uint) (<-chan QueueEvent, error) {
	sub := cache.Subscribe(ctx, EventChannel(streamerID))
	// Force the subscription handshake so callers learn about a dead Redis
	// immediately instead of on first receive.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan QueueEvent)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var event QueueEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Errorf("[AlertQueue] dropping malformed queue event: %v", err)
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func eventFromItem(item *models.AlertQueueItem) QueueEvent {
	return QueueEvent{
		ItemID:        item.ID,
		StreamerID:    item.StreamerID,
		AlertID:       item.AlertID,
		TransactionID: item.TransactionID,
		IsTest:        item.IsTest,
		SenderName:    item.SenderName,
		Message:       item.Message,
		EnqueuedAt:    item.CreatedAt,
	}
}
