package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"clinic-console/internal/brokers/export"
	"clinic-console/internal/common/logging"
	"clinic-console/internal/events"
)

const relaySubscribeTimeout = 5 * time.Second

// initializeEvents creates the event store, the cross-instance relay when Redis
// is available, and the optional export broker
func (app *App) initializeEvents(ctx context.Context) error {
	app.Events = events.NewStore(events.DefaultCapacity, app.Metrics)

	var rdb *goredis.Client
	if app.RedisClient != nil {
		rdb = app.RedisClient.Redis()
		if err := app.startRelay(ctx); err != nil {
			return err
		}
	}

	exportCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	exporter, err := export.New(exportCtx, app.Config.Export, rdb, app.Metrics, app.Breakers)
	if err != nil {
		return err
	}
	app.Exporter = exporter
	app.onClose(func() {
		if err := exporter.Close(); err != nil {
			app.Logger.Warn("Error closing exporter", logging.Err(err))
		}
	})
	app.Logger.Info("Event export", logging.String("broker", exporter.Name()))
	return nil
}

func (app *App) startRelay(ctx context.Context) error {
	app.Relay = events.NewRedisRelay(app.RedisClient, app.Events, events.DefaultRelayChannel, app.Config.InstanceID)

	ready := make(chan struct{})
	failed := make(chan error, 1)
	app.workers.Add(1)
	go func() {
		defer app.workers.Done()
		if err := app.Relay.Run(ctx, ready); err != nil {
			app.Logger.Error("Event relay stopped", err)
			failed <- err
		}
	}()

	select {
	case <-ready:
		app.Logger.Info("Event relay: Subscribed", logging.String("instance", app.Config.InstanceID))
		return nil
	case err := <-failed:
		return err
	case <-time.After(relaySubscribeTimeout):
		return fmt.Errorf("event relay did not subscribe within %s", relaySubscribeTimeout)
	}
}
