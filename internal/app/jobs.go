package app

import (
	"context"
	"time"

	"clinic-console/internal/jobs"
	"clinic-console/internal/locks"
)

const purgeStopTimeout = 10 * time.Second

// initializeJobs schedules the token purge. With Redis the purge lock is shared
// so one instance purges per tick.
func (app *App) initializeJobs() error {
	var locker locks.Locker
	if app.RedisClient != nil {
		redsyncLocker, err := locks.NewRedsyncLocker(app.RedisClient.Redis())
		if err != nil {
			return err
		}
		locker = redsyncLocker
	}

	app.Purger = jobs.NewScheduler(locker, app.Auth.Tokens(), app.Storage)
	if err := app.Purger.Start(app.Config.PurgeSchedule); err != nil {
		return err
	}
	app.onClose(func() {
		ctx, cancel := context.WithTimeout(context.Background(), purgeStopTimeout)
		defer cancel()
		app.Purger.Stop(ctx)
	})
	return nil
}
