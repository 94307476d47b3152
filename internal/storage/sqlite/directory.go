package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"escalator/internal/domain"
)

var ErrUserNotFound = domain.ErrUserNotFound

// ResolveExecutives returns the leadership scoped to a market/store. A scope
// with market '*' covers every market; an empty store number covers every
// store in its market.
func (s *Store) ResolveExecutives(ctx context.Context, market, storeNumber string) ([]domain.Recipient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.display_name, sc.role, sc.notification_level
		 FROM executive_scopes sc
		 JOIN users u ON u.id = sc.user_id
		 WHERE (sc.market = ? OR sc.market = '*')
		   AND (sc.store_number = '' OR sc.store_number = ?)
		 ORDER BY CASE upper(sc.role)
		            WHEN 'CEO' THEN 0 WHEN 'VP' THEN 1 WHEN 'DIRECTOR' THEN 2 ELSE 3 END,
		          u.id`,
		market, storeNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve executives %s/%s: %w", market, storeNumber, err)
	}
	defer rows.Close()

	var out []domain.Recipient
	for rows.Next() {
		var r domain.Recipient
		var role string
		if err := rows.Scan(&r.UserID, &r.Email, &r.DisplayName, &role, &r.NotificationLevel); err != nil {
			return nil, err
		}
		r.Role = domain.NormalizeRole(role)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetManager returns "" for a root user.
func (s *Store) GetManager(ctx context.Context, userID string) (string, error) {
	var manager sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT manager_id FROM users WHERE id = ?`, userID).Scan(&manager)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get manager of %s: %w", userID, err)
	}
	return manager.String, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var p domain.Profile
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, role FROM users WHERE id = ?`, userID,
	).Scan(&p.UserID, &p.Email, &p.DisplayName, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return p, err
	}
	p.Role = domain.NormalizeRole(role)
	return p, nil
}

func (s *Store) UpsertUser(ctx context.Context, p domain.Profile, managerID string) error {
	var manager sql.NullString
	if managerID != "" {
		manager = sql.NullString{String: managerID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, role, manager_id) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   email = excluded.email, display_name = excluded.display_name,
		   role = excluded.role, manager_id = excluded.manager_id`,
		p.UserID, p.Email, p.DisplayName, string(p.Role), manager,
	)
	return err
}

func (s *Store) AddExecutiveScope(ctx context.Context, userID, market, storeNumber string, role domain.Role, level string) error {
	if level == "" {
		level = "all"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executive_scopes (user_id, market, store_number, role, notification_level)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, market, store_number) DO UPDATE SET
		   role = excluded.role, notification_level = excluded.notification_level`,
		userID, market, storeNumber, string(role), level,
	)
	return err
}
