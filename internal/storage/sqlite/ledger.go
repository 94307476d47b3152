package sqlite

import (
	"context"
	"fmt"
	"time"

	"escalator/internal/domain"
)

// TryRecord inserts the (case, tier) ledger row. The primary key decides
// races: exactly one caller sees a row inserted and gets true.
func (s *Store) TryRecord(ctx context.Context, caseID string, tier domain.Tier) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_ledger (case_id, tier, sent_at) VALUES (?, ?, ?)
		 ON CONFLICT(case_id, tier) DO NOTHING`,
		caseID, tier.String(), time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("ledger insert %s/%s: %w", caseID, tier, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) HasSent(ctx context.Context, caseID string, tier domain.Tier) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_ledger WHERE case_id = ? AND tier = ?`,
		caseID, tier.String(),
	).Scan(&count)
	return count > 0, err
}

func (s *Store) LedgerEntries(ctx context.Context, caseID string) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT case_id, tier, sent_at FROM notification_ledger WHERE case_id = ? ORDER BY sent_at, tier`,
		caseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var tier string
		if err := rows.Scan(&e.CaseID, &tier, &e.SentAt); err != nil {
			return nil, err
		}
		if e.Tier, err = domain.ParseTier(tier); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
