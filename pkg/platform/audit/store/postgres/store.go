// Package postgres persists audit events through database/sql with the pq
// driver. The table is append-only; audit rows are never updated or deleted
// inside the retention window.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"carebridge/pkg/domain"
	audit "carebridge/pkg/platform/audit"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	return &Store{db: db}, nil
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id                 BIGSERIAL PRIMARY KEY,
	category           TEXT NOT NULL,
	occurred_at        TIMESTAMPTZ NOT NULL,
	visit_id           UUID NOT NULL,
	state              TEXT NOT NULL,
	action             TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT '',
	detail             TEXT NOT NULL DEFAULT '',
	regulatory_context TEXT NOT NULL DEFAULT '',
	request_id         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_visit ON audit_events (visit_id, occurred_at);
`

// Migrate creates the audit table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, auditSchema); err != nil {
		return fmt.Errorf("migrate audit_events: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(category, occurred_at, visit_id, state, action, status, detail, regulatory_context, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(event.Category),
		event.Timestamp,
		event.VisitID.String(),
		event.State.String(),
		event.Action,
		event.Status,
		event.Detail,
		event.RegulatoryContext,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByVisit(ctx context.Context, visitID domain.VisitID) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, occurred_at, visit_id, state, action, status, detail, regulatory_context, request_id
		FROM audit_events
		WHERE visit_id = $1
		ORDER BY occurred_at`,
		visitID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events by visit: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) ListAll(ctx context.Context) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, occurred_at, visit_id, state, action, status, detail, regulatory_context, request_id
		FROM audit_events
		ORDER BY occurred_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event           audit.Event
			category        string
			visitID, state  string
		)
		if err := rows.Scan(&category, &event.Timestamp, &visitID, &state,
			&event.Action, &event.Status, &event.Detail, &event.RegulatoryContext, &event.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		parsedVisit, err := domain.ParseVisitID(visitID)
		if err != nil {
			return nil, fmt.Errorf("scan audit event visit id: %w", err)
		}
		event.VisitID = parsedVisit
		event.State = domain.StateCode(state)
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
