package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"escalator/internal/domain"
)

var ErrCaseNotFound = domain.ErrCaseNotFound

const caseColumns = `id, market, store_number, category, priority, status, summary,
	customer_name, customer_email, customer_phone, escalated_at, sla_deadline`

func (s *Store) ListEscalated(ctx context.Context) ([]domain.Case, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+caseColumns+` FROM cases
		 WHERE status = ? AND sla_deadline IS NOT NULL
		 ORDER BY sla_deadline, id`,
		domain.CaseStatusEscalated,
	)
	if err != nil {
		return nil, fmt.Errorf("list escalated cases: %w", err)
	}
	defer rows.Close()

	var cases []domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func (s *Store) GetCase(ctx context.Context, id string) (domain.Case, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = ?`, id)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Case{}, fmt.Errorf("%w: %s", ErrCaseNotFound, id)
	}
	return c, err
}

// UpsertCase is used by the feedback subsystem import and by tests.
func (s *Store) UpsertCase(ctx context.Context, c domain.Case) error {
	var escalatedAt sql.NullTime
	if !c.EscalatedAt.IsZero() {
		escalatedAt = sql.NullTime{Time: c.EscalatedAt, Valid: true}
	}
	var deadline sql.NullTime
	if c.SLADeadline != nil {
		deadline = sql.NullTime{Time: *c.SLADeadline, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cases (`+caseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   market = excluded.market, store_number = excluded.store_number,
		   category = excluded.category, priority = excluded.priority,
		   status = excluded.status, summary = excluded.summary,
		   customer_name = excluded.customer_name, customer_email = excluded.customer_email,
		   customer_phone = excluded.customer_phone, escalated_at = excluded.escalated_at,
		   sla_deadline = excluded.sla_deadline`,
		c.ID, c.Market, c.StoreNumber, c.Category, c.Priority, c.Status, c.Summary,
		c.CustomerName, c.CustomerEmail, c.CustomerPhone, escalatedAt, deadline,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(r rowScanner) (domain.Case, error) {
	var c domain.Case
	var escalatedAt, deadline sql.NullTime
	err := r.Scan(
		&c.ID, &c.Market, &c.StoreNumber, &c.Category, &c.Priority, &c.Status, &c.Summary,
		&c.CustomerName, &c.CustomerEmail, &c.CustomerPhone, &escalatedAt, &deadline,
	)
	if err != nil {
		return c, err
	}
	if escalatedAt.Valid {
		c.EscalatedAt = escalatedAt.Time
	}
	if deadline.Valid {
		d := deadline.Time
		c.SLADeadline = &d
	}
	return c, nil
}
