package app

import (
	"fmt"

	"clinic-console/internal/common/logging"
	"clinic-console/internal/storage"
	_ "clinic-console/internal/storage/postgres"
	_ "clinic-console/internal/storage/sqlite"
)

func (app *App) initializeStorage() error {
	switch app.Config.DatabaseType {
	case "postgres", "postgresql":
		app.Logger.Info("Database: PostgreSQL",
			logging.String("host", app.Config.PostgresHost),
			logging.String("port", app.Config.PostgresPort),
			logging.String("database", app.Config.PostgresDB),
		)
	default:
		app.Logger.Info("Database: SQLite", logging.String("path", app.Config.DatabasePath))
	}

	store, err := storage.NewStorage(app.Config)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.Storage = store
	app.onClose(func() {
		if err := store.Close(); err != nil {
			app.Logger.Warn("Error closing storage", logging.Err(err))
		}
	})
	return nil
}
