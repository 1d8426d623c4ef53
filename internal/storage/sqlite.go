package storage

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/farhan/hookgate/internal/event"
)

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			external_id TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_events_external ON events(external_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at)`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) RecordEvent(ctx context.Context, rec *EventRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, event_type, external_id, display_name, outcome, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EventType, rec.ExternalID, rec.DisplayName, rec.Outcome, rec.CreatedAt,
	)
	return err
}

func (s *SQLiteStorage) ListEvents(ctx context.Context, limit, offset int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_type, external_id, display_name, outcome, created_at FROM events ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(&rec.ID, &rec.EventType, &rec.ExternalID, &rec.DisplayName, &rec.Outcome, &rec.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, rec)
	}
	return events, rows.Err()
}

func (s *SQLiteStorage) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&stats.TotalEvents)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE event_type = ?`, event.TypeAuthorized).Scan(&stats.AuthorizedCount)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE event_type = ?`, event.TypeDeauthorized).Scan(&stats.DeauthorizedCount)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE outcome = ?`, OutcomeIgnored).Scan(&stats.IgnoredCount)
	s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT external_id) FROM events WHERE external_id != ''`).Scan(&stats.UniqueUsers)

	return stats, nil
}
