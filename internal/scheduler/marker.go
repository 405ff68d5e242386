package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// MarkerStore persists the last reset date in a local SQLite file so a
// restarted process neither repeats nor skips the day's reset.
type MarkerStore struct {
	db   *sql.DB
	path string
}

func OpenMarkerStore(stateDir string) (*MarkerStore, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure state dir: %w", err)
	}

	dbPath := filepath.Join(stateDir, "reset.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open marker db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS reset_marker (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_reset_date TEXT NOT NULL
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create marker table: %w", err)
	}

	return &MarkerStore{db: db, path: dbPath}, nil
}

func (m *MarkerStore) Path() string {
	return m.path
}

// LastResetDate returns the stored date, or "" when no reset has run yet.
func (m *MarkerStore) LastResetDate(ctx context.Context) (string, error) {
	var date string
	err := m.db.QueryRowContext(ctx, `SELECT last_reset_date FROM reset_marker WHERE id = 1`).Scan(&date)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return date, nil
}

func (m *MarkerStore) SetLastResetDate(ctx context.Context, date string) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO reset_marker (id, last_reset_date)
		VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET last_reset_date = excluded.last_reset_date
	`, date)
	return err
}

func (m *MarkerStore) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}
