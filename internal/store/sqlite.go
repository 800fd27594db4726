package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/campuspay/student-portal/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// ReplacePayments swaps the cached payments snapshot wholesale.
func (s *SQLiteStore) ReplacePayments(ctx context.Context, payments []model.Payment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM payments"); err != nil {
		return fmt.Errorf("clearing cached payments: %w", err)
	}

	const query = `
		INSERT INTO payments (
			id, fee_id, amount, payment_provider, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing payment insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range payments {
		_, err = stmt.ExecContext(ctx,
			p.ID, p.FeeID, p.Amount, p.PaymentProvider, p.Status, p.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("caching payment %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing payments cache: %w", err)
	}
	return nil
}

// Payments returns the cached payments snapshot, oldest first.
func (s *SQLiteStore) Payments(ctx context.Context) ([]model.Payment, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, fee_id, amount, payment_provider, status, created_at
		FROM payments
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying cached payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(
			&p.ID, &p.FeeID, &p.Amount, &p.PaymentProvider, &p.Status, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning cached payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ReplaceNotifications swaps the cached notifications snapshot wholesale.
func (s *SQLiteStore) ReplaceNotifications(ctx context.Context, notifications []model.Notification) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications"); err != nil {
		return fmt.Errorf("clearing cached notifications: %w", err)
	}

	const query = `
		INSERT INTO notifications (
			id, message, type, status, read, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing notification insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range notifications {
		_, err = stmt.ExecContext(ctx,
			n.ID, n.Message, n.Type, n.Status, n.Read, n.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("caching notification %s: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing notifications cache: %w", err)
	}
	return nil
}

// Notifications returns the cached notifications, newest first.
func (s *SQLiteStore) Notifications(ctx context.Context, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, message, type, status, read, created_at
		FROM notifications
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying cached notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(
			&n.ID, &n.Message, &n.Type, &n.Status, &n.Read, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning cached notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// DefaultCachePath returns the default location of the cache database,
// under ~/.local/state/studentportal. Callers fall back to an in-memory
// database when the directory cannot be created.
func DefaultCachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".local", "state", "studentportal")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	return filepath.Join(dir, "cache.db"), nil
}
