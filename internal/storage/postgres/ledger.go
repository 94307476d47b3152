// Package postgres provides a PostgreSQL notification ledger and audit log,
// for deployments where several engine instances share one ledger.
package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"escalator/internal/domain"
)

//go:embed schema.sql
var schema string

// Store persists ledger and audit entries in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL, applies the schema, and returns a ready Store.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// TryRecord relies on the primary key: ON CONFLICT DO NOTHING leaves the
// losing inserts with zero affected rows.
func (s *Store) TryRecord(ctx context.Context, caseID string, tier domain.Tier) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO notification_ledger (case_id, tier) VALUES ($1, $2)
		 ON CONFLICT (case_id, tier) DO NOTHING`,
		caseID, tier.String(),
	)
	if err != nil {
		return false, fmt.Errorf("ledger insert %s/%s: %w", caseID, tier, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) HasSent(ctx context.Context, caseID string, tier domain.Tier) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notification_ledger WHERE case_id = $1 AND tier = $2)`,
		caseID, tier.String(),
	).Scan(&exists)
	return exists, err
}

func (s *Store) LedgerEntries(ctx context.Context, caseID string) ([]domain.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT case_id, tier, sent_at FROM notification_ledger WHERE case_id = $1 ORDER BY sent_at, tier`,
		caseID,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.LedgerEntry, error) {
		var e domain.LedgerEntry
		var tier string
		if err := row.Scan(&e.CaseID, &tier, &e.SentAt); err != nil {
			return e, err
		}
		t, err := domain.ParseTier(tier)
		e.Tier = t
		return e, err
	})
}

func (s *Store) Append(ctx context.Context, e domain.EscalationLogEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO escalation_log (id, case_id, from_state, to_state, reason, logged_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.CaseID, e.From, e.To, e.Reason, e.At,
	)
	return err
}

func (s *Store) EscalationLog(ctx context.Context, caseID string) ([]domain.EscalationLogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, case_id, from_state, to_state, reason, logged_at
		 FROM escalation_log WHERE case_id = $1 ORDER BY logged_at, id`,
		caseID,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.EscalationLogEntry, error) {
		var e domain.EscalationLogEntry
		err := row.Scan(&e.ID, &e.CaseID, &e.From, &e.To, &e.Reason, &e.At)
		return e, err
	})
}
