package sqldb

// schema is valid on both SQLite and PostgreSQL. Times are Unix milliseconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		clinic_id TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		token_hash TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		clinic_id TEXT NOT NULL,
		expires_at BIGINT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_expires ON refresh_tokens (expires_at)`,
	`CREATE TABLE IF NOT EXISTS login_attempts (
		identifier TEXT NOT NULL,
		success INTEGER NOT NULL,
		attempted_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_login_attempts_identifier ON login_attempts (identifier, attempted_at)`,
	`CREATE TABLE IF NOT EXISTS patients (
		id TEXT PRIMARY KEY,
		clinic_id TEXT NOT NULL,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_patients_phone ON patients (phone)`,
	`CREATE TABLE IF NOT EXISTS call_logs (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		caller_number TEXT NOT NULL,
		called_number TEXT NOT NULL DEFAULT '',
		patient_id TEXT NOT NULL DEFAULT '',
		occurred_at BIGINT NOT NULL,
		received_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_call_logs_received ON call_logs (received_at)`,
}
