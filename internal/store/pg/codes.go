package pg

import (
	"context"
	"errors"

	"github.com/dropDatabas3/bricks/internal/store/core"
	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateCode(ctx context.Context, c *core.AuthCode) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Requesting a new code retires older unused ones of the same purpose.
	_, err = tx.Exec(ctx, `
		UPDATE auth_code SET used_at = now()
		WHERE user_id = $1 AND purpose = $2 AND used_at IS NULL
	`, c.UserID, c.Purpose)
	if err != nil {
		return mapErr(err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO auth_code (id, user_id, purpose, token_hash, sent_to, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.UserID, c.Purpose, c.TokenHash, c.SentTo, c.ExpiresAt)
	if err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit(ctx))
}

// ConsumeCode flips used_at exactly once. The conditional UPDATE is the
// single-use guarantee; a second presentation matches no row and we
// classify it by re-reading the record.
func (s *Store) ConsumeCode(ctx context.Context, tokenHash, purpose string) (string, error) {
	var userID string
	err := s.pool.QueryRow(ctx, `
		UPDATE auth_code SET used_at = now()
		WHERE token_hash = $1
		  AND purpose = $2
		  AND used_at IS NULL
		  AND expires_at > now()
		RETURNING user_id
	`, tokenHash, purpose).Scan(&userID)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", mapErr(err)
	}

	var used bool
	var expired bool
	err = s.pool.QueryRow(ctx, `
		SELECT used_at IS NOT NULL, expires_at <= now()
		FROM auth_code
		WHERE token_hash = $1 AND purpose = $2
	`, tokenHash, purpose).Scan(&used, &expired)
	if err != nil {
		return "", mapErr(err)
	}
	if used {
		return "", core.ErrCodeUsed
	}
	if expired {
		return "", core.ErrCodeExpired
	}
	return "", core.ErrNotFound
}
