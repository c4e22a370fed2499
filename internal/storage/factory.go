package storage

import (
	"fmt"

	"clinic-console/internal/config"
)

// GenericConfig carries backend settings as strings so this package does not
// import the backends. Each factory converts it to its own Config.
type GenericConfig map[string]string

func (g GenericConfig) Validate() error {
	if g["type"] == "" {
		return fmt.Errorf("storage type is required")
	}
	return nil
}

func (g GenericConfig) GetType() string {
	return g["type"]
}

func (g GenericConfig) GetConnectionString() string {
	return g["path"]
}

// NewStorage opens the database selected by cfg.DatabaseType through the
// default registry. An unknown type is reported by the registry with the list
// of compiled-in backends.
func NewStorage(cfg *config.Config) (Storage, error) {
	storageConfig := GenericConfig{"type": cfg.DatabaseType}

	switch cfg.DatabaseType {
	case "sqlite":
		storageConfig["path"] = cfg.DatabasePath

	case "postgres", "postgresql":
		storageConfig["host"] = cfg.PostgresHost
		storageConfig["port"] = cfg.PostgresPort
		storageConfig["database"] = cfg.PostgresDB
		storageConfig["username"] = cfg.PostgresUser
		storageConfig["password"] = cfg.PostgresPassword
		storageConfig["sslmode"] = cfg.PostgresSSLMode
	}

	return Open(storageConfig)
}
