package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"escalator/internal/domain"
)

// GetBinding reports ok=false on a cache miss.
func (s *Store) GetBinding(ctx context.Context, email string, channel domain.Channel) (domain.ChannelBinding, bool, error) {
	b := domain.ChannelBinding{Email: email, Channel: channel}
	err := s.db.QueryRowContext(ctx,
		`SELECT handle, cached_at FROM channel_bindings WHERE email = ? AND channel = ?`,
		email, string(channel),
	).Scan(&b.Handle, &b.CachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return b, false, nil
	}
	if err != nil {
		return b, false, err
	}
	return b, true, nil
}

func (s *Store) PutBinding(ctx context.Context, b domain.ChannelBinding) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_bindings (email, channel, handle, cached_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(email, channel) DO UPDATE SET handle = excluded.handle, cached_at = excluded.cached_at`,
		b.Email, string(b.Channel), b.Handle, b.CachedAt,
	)
	return err
}

func (s *Store) DeleteBinding(ctx context.Context, email string, channel domain.Channel) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM channel_bindings WHERE email = ? AND channel = ?`, email, string(channel))
	return err
}
