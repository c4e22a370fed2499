package app

import (
	"context"

	"clinic-console/internal/auth"
	"clinic-console/internal/circuitbreaker"
	"clinic-console/internal/common/errors"
	"clinic-console/internal/common/logging"
	"clinic-console/internal/storage"
	"clinic-console/internal/storage/redisstore"
)

func (app *App) initializeAuth(ctx context.Context) error {
	var tokenStore storage.RefreshTokenStore = app.Storage
	if app.Config.TokenStore == "redis" {
		tokenStore = redisstore.NewTokenStore(app.RedisClient.Redis(), "")
	}
	app.Logger.Info("Refresh tokens", logging.String("store", app.Config.TokenStore))

	tokens := auth.NewTokenService(app.Config.JWTSecret, tokenStore, app.Storage,
		auth.WithRefreshTTL(app.Config.RefreshTokenTTL),
		auth.WithMetrics(app.Metrics),
	)
	guard := auth.NewLoginGuard(app.Storage, app.Breakers.GetOrCreate("login_attempts", circuitbreaker.StoreConfig))
	app.Auth = auth.NewService(tokens, app.Storage, guard)

	created, err := app.Auth.EnsureAdmin(ctx, app.Config.AdminUsername, app.Config.AdminPassword, app.Config.AdminClinicID)
	switch {
	case errors.IsType(err, errors.ErrTypeConfig):
		app.Logger.Warn("No users exist; set ADMIN_USERNAME and ADMIN_PASSWORD to create the first account")
	case err != nil:
		return err
	case created:
		app.Logger.Info("Bootstrap admin account created", logging.String("username", app.Config.AdminUsername))
	}
	return nil
}
