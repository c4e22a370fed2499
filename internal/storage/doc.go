// Package storage defines the persistence contract for users, refresh tokens,
// login attempts, patients and call logs.
//
// Two SQL backends register themselves with the default registry: sqlite
// (github.com/mattn/go-sqlite3) and postgres (github.com/jackc/pgx/v5 through its
// database/sql driver). Both share one implementation in package sqldb; only the
// driver, the placeholder style and the connection settings differ.
//
// Refresh tokens can alternatively be kept in Redis (package redisstore), which
// makes rotation and expiry a single Redis operation.
//
// Example usage:
//
//	store, err := storage.NewStorage(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	patient, err := store.FindPatientByPhone(ctx, "01012345678")
//	if errors.Is(err, storage.ErrNotFound) {
//		// new caller
//	}
//
// Timestamps are stored as Unix milliseconds so comparisons behave the same on both databases.
package storage
