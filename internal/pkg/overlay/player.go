package overlay

import (
	"context"
	"time"
)

// Settings is the pacing configuration resolved for one widget connection.
type Settings struct {
	ImageDuration time.Duration
	StartDelay    time.Duration
	BetweenDelay  time.Duration
	Position      string
}

// Item is the consumer's local view of one queue entry.
type Item struct {
	ID         uint
	AlertID    uint
	SenderName string
	Message    string
	IsTest     bool
}

// AlertContent is the displayable alert fetched when an item starts playing.
type AlertContent struct {
	Title      string
	PriceCents int64
	MediaKind  string
	MediaURL   string
}

// PlayRequest bundles everything the display surface needs for one alert.
type PlayRequest struct {
	Item     Item
	Alert    AlertContent
	Position string
	// Duration is set for image alerts; audio and video run until their
	// media fires completion.
	Duration time.Duration
}

// Player renders one alert and blocks until its completion signal: media end
// for audio/video, the configured duration for images. Implementations must
// honor context cancellation — the consumer bounds every play with a timeout
// so a non-firing media event cannot stall the queue.
type Player interface {
	Play(ctx context.Context, req PlayRequest) error
}

// PlayerFunc adapts a function to the Player interface.
type PlayerFunc func(ctx context.Context, req PlayRequest) error

func (f PlayerFunc) Play(ctx context.Context, req PlayRequest) error {
	return f(ctx, req)
}

// Store is the queue surface a consumer drains: the initial/recovery load,
// alert content fetch and the two lifecycle writes.
type Store interface {
	Settings(ctx context.Context) (Settings, error)
	LoadQueued(ctx context.Context) ([]Item, error)
	FetchAlert(ctx context.Context, alertID uint) (*AlertContent, error)
	MarkPlaying(ctx context.Context, itemID uint) error
	MarkFinished(ctx context.Context, itemID uint) error
}

// Events is the realtime insertion feed. The returned channel closes when the
// connection drops; the consumer then reloads and resubscribes.
type Events interface {
	Subscribe(ctx context.Context) (<-chan Item, error)
}
