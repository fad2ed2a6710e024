package overlay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// DefaultMaxPlayWait bounds audio/video playback so malformed media that
// never fires completion cannot stall a streamer's queue.
const DefaultMaxPlayWait = 60 * time.Second

const resubscribeDelay = 2 * time.Second

// Consumer drains one streamer's alert queue: strictly one alert at a time,
// in arrival order, honoring the configured delays, surviving disconnects
// without skipping or duplicating items.
type Consumer struct {
	store       Store
	events      Events
	player      Player
	maxPlayWait time.Duration

	mu      sync.Mutex
	buffer  []Item
	current *Item
	seen    map[uint]struct{}

	kick chan struct{}
}

// Option tweaks consumer construction.
type Option func(*Consumer)

// WithMaxPlayWait overrides the audio/video playback bound.
func WithMaxPlayWait(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.maxPlayWait = d
		}
	}
}

// NewConsumer creates a consumer; Run starts it.
func NewConsumer(store Store, events Events, player Player, opts ...Option) *Consumer {
	c := &Consumer{
		store:       store,
		events:      events,
		player:      player,
		maxPlayWait: DefaultMaxPlayWait,
		seen:        make(map[uint]struct{}),
		kick:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the widget protocol until the context is cancelled: resolve
// settings, load queued items, subscribe to insertions, drain. On a dropped
// subscription the load re-runs before resubscribing — that reload is the
// only durability backstop for events missed while offline.
func (c *Consumer) Run(ctx context.Context) error {
	settings, err := c.store.Settings(ctx)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.drain(ctx, settings)
	}()
	defer wg.Wait()

	for {
		if err := c.loadQueued(ctx); err != nil {
			log.Errorf("[Overlay] queue load failed: %v", err)
		}

		ch, err := c.events.Subscribe(ctx)
		if err != nil {
			log.Errorf("[Overlay] subscribe failed: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(resubscribeDelay):
			}
			continue
		}

		for item := range ch {
			c.append(item)
		}
		// Feed closed: reconnect unless we are shutting down.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(resubscribeDelay):
		}
	}
}

func (c *Consumer) loadQueued(ctx context.Context) error {
	items, err := c.store.LoadQueued(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		c.append(item)
	}
	return nil
}

// append adds an item to the buffer tail unless this consumer already holds
// or held it. The recovery load and the realtime feed both funnel through
// here, so duplicate signals from the two producers are harmless.
func (c *Consumer) append(item Item) {
	c.mu.Lock()
	if _, dup := c.seen[item.ID]; dup {
		c.mu.Unlock()
		return
	}
	c.seen[item.ID] = struct{}{}
	c.buffer = append(c.buffer, item)
	c.mu.Unlock()
	c.wake()
}

func (c *Consumer) wake() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// reserve pops the head item and assigns it to current in one critical
// section, before any asynchronous work. This is what keeps at most one item
// playing even with multiple wake sources firing concurrently.
func (c *Consumer) reserve() *Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil || len(c.buffer) == 0 {
		return nil
	}
	item := c.buffer[0]
	c.buffer = c.buffer[1:]
	c.current = &item
	return &item
}

func (c *Consumer) release() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	c.wake()
}

// Current returns the id of the item playing right now, or 0 when idle.
func (c *Consumer) Current() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return 0
	}
	return c.current.ID
}

func (c *Consumer) drain(ctx context.Context, settings Settings) {
	for {
		item := c.reserve()
		if item == nil {
			select {
			case <-ctx.Done():
				return
			case <-c.kick:
				continue
			}
		}

		c.playOne(ctx, settings, *item)
		if ctx.Err() != nil {
			return
		}
		if !sleepCtx(ctx, settings.BetweenDelay) {
			return
		}
		c.release()
	}
}

func (c *Consumer) playOne(ctx context.Context, settings Settings, item Item) {
	if !sleepCtx(ctx, settings.StartDelay) {
		return
	}

	// Status writes are best-effort: a temporarily inconsistent remote state
	// beats a stalled overlay.
	if err := c.store.MarkPlaying(ctx, item.ID); err != nil {
		log.Errorf("[Overlay] mark playing failed for item %d: %v", item.ID, err)
	}

	alert, err := c.store.FetchAlert(ctx, item.AlertID)
	if err != nil {
		// Do not stall the queue on missing content; finish the item and
		// let the loop advance.
		log.Errorf("[Overlay] alert fetch failed for item %d: %v", item.ID, err)
	} else {
		c.play(ctx, settings, item, *alert)
	}

	if err := c.store.MarkFinished(ctx, item.ID); err != nil {
		log.Errorf("[Overlay] mark finished failed for item %d: %v", item.ID, err)
	}
}

func (c *Consumer) play(ctx context.Context, settings Settings, item Item, alert AlertContent) {
	req := PlayRequest{
		Item:     item,
		Alert:    alert,
		Position: settings.Position,
	}

	wait := c.maxPlayWait
	if alert.MediaKind == "image" {
		req.Duration = settings.ImageDuration
		wait = settings.ImageDuration
	}

	playCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	if err := c.player.Play(playCtx, req); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			if alert.MediaKind != "image" {
				log.Warnf("[Overlay] playback of item %d hit the %s bound", item.ID, c.maxPlayWait)
			}
			return
		}
		log.Errorf("[Overlay] playback failed for item %d: %v", item.ID, err)
	}
}

// sleepCtx waits d and reports false when the context died first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
