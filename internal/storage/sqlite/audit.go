package sqlite

import (
	"context"

	"escalator/internal/domain"
)

func (s *Store) Append(ctx context.Context, e domain.EscalationLogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO escalation_log (id, case_id, from_state, to_state, reason, logged_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.CaseID, e.From, e.To, e.Reason, e.At,
	)
	return err
}

func (s *Store) EscalationLog(ctx context.Context, caseID string) ([]domain.EscalationLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, case_id, from_state, to_state, reason, logged_at
		 FROM escalation_log WHERE case_id = ? ORDER BY logged_at, id`,
		caseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.EscalationLogEntry
	for rows.Next() {
		var e domain.EscalationLogEntry
		if err := rows.Scan(&e.ID, &e.CaseID, &e.From, &e.To, &e.Reason, &e.At); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
