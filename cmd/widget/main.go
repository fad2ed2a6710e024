package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlertaPix/alertapix/internal/pkg/alertqueue"
	"github.com/AlertaPix/alertapix/internal/pkg/cache"
	"github.com/AlertaPix/alertapix/internal/pkg/database"
	"github.com/AlertaPix/alertapix/internal/pkg/env"
	"github.com/AlertaPix/alertapix/internal/pkg/overlay"
)

// Headless widget: drains a streamer's alert queue from the terminal. Useful
// for verifying the delivery protocol without OBS, and the reference
// implementation the browser widgets must stay in parity with.
func main() {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	publicKey := env.GetEnv("WIDGET_PUBLIC_KEY", "")
	if len(os.Args) > 1 {
		publicKey = os.Args[1]
	}
	if publicKey == "" {
		log.Fatal("usage: widget <public-key> (or set WIDGET_PUBLIC_KEY)")
	}

	svc := alertqueue.NewServiceFromDB(database.GetDB())
	store := &overlay.QueueStore{Service: svc, PublicKey: publicKey}
	events := &overlay.QueueEvents{Service: svc, Subscriber: alertqueue.NewRedisFeed(), PublicKey: publicKey}

	player := overlay.PlayerFunc(func(ctx context.Context, req overlay.PlayRequest) error {
		log.Printf("ALERT %q from %q: %s [%s %s]",
			req.Alert.Title, req.Item.SenderName, req.Item.Message, req.Alert.MediaKind, req.Alert.MediaURL)
		// No real media pipeline here; run for the image duration or until
		// the consumer's playback bound fires.
		<-ctx.Done()
		return nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := overlay.NewConsumer(store, events, player)
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("widget stopped: %v", err)
	}
}
