package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const DefaultTable = "analytics_events"

// PostgresSink writes events into an analytics_events style table.
type PostgresSink struct {
	db    *sql.DB
	table string
}

func NewPostgresSink(db *sql.DB, table string) *PostgresSink {
	if strings.TrimSpace(table) == "" {
		table = DefaultTable
	}
	return &PostgresSink{db: db, table: pq.QuoteIdentifier(table)}
}

func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			event_id         UUID PRIMARY KEY,
			event_name       TEXT NOT NULL,
			event_time       TIMESTAMPTZ NOT NULL,
			principal        TEXT NOT NULL,
			session_id       TEXT,
			platform         TEXT NOT NULL,
			app_version      TEXT NOT NULL,
			device_locale    TEXT,
			source_event_key TEXT UNIQUE,
			properties       JSONB NOT NULL DEFAULT '{}'::jsonb
		)`, s.table))
	if err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

func (s *PostgresSink) Log(ctx context.Context, ev Event) error {
	props := ev.Props
	if props == nil {
		props = map[string]any{}
	}
	b, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("marshal props: %w", err)
	}

	// If source_event_key duplicates -> do nothing
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			event_id, event_name, event_time,
			principal, session_id,
			platform, app_version, device_locale,
			source_event_key,
			properties
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb)
		ON CONFLICT (source_event_key) DO NOTHING
	`, s.table),
		ev.ID, ev.Name, ev.Time,
		ev.Principal.String(), nullIfEmpty(ev.Envelope.SessionID),
		ev.Envelope.Platform, ev.Envelope.AppVersion, nullIfEmpty(ev.Envelope.DeviceLocale),
		nullIfEmpty(ev.SourceEventKey),
		string(b),
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", ev.Name, err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
