package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carebridge/internal/evv/models"
	"carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
)

// PostgresStore persists EVV records in PostgreSQL. The full record is stored
// as JSONB; state and service date are lifted into columns for the dashboard
// range queries.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const recordSchema = `
CREATE TABLE IF NOT EXISTS evv_records (
	visit_id     UUID PRIMARY KEY,
	state        TEXT NOT NULL,
	service_date DATE NOT NULL,
	record       JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS evv_records_state_date ON evv_records (state, service_date);
`

// Migrate creates the records table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, recordSchema); err != nil {
		return fmt.Errorf("migrate evv_records: %w", err)
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, record *models.EVVRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal EVV record: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO evv_records (visit_id, state, service_date, record, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (visit_id) DO UPDATE
		SET state = EXCLUDED.state,
		    service_date = EXCLUDED.service_date,
		    record = EXCLUDED.record,
		    updated_at = now()`,
		record.VisitID.String(),
		record.State.String(),
		record.ServiceDate,
		payload,
	)
	if err != nil {
		return fmt.Errorf("put EVV record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, visitID domain.VisitID) (*models.EVVRecord, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM evv_records WHERE visit_id = $1`,
		visitID.String(),
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get EVV record: %w", err)
	}
	return unmarshalRecord(payload)
}

func (s *PostgresStore) ListByStateAndRange(ctx context.Context, state domain.StateCode, start, end time.Time) ([]*models.EVVRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT record FROM evv_records
		WHERE state = $1 AND service_date BETWEEN $2 AND $3
		ORDER BY service_date`,
		state.String(), start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("list EVV records: %w", err)
	}
	defer rows.Close()

	var records []*models.EVVRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan EVV record: %w", err)
		}
		record, err := unmarshalRecord(payload)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func unmarshalRecord(payload []byte) (*models.EVVRecord, error) {
	var record models.EVVRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshal EVV record: %w", err)
	}
	return &record, nil
}
