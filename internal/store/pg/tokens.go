package pg

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/bricks/internal/store/core"
	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateRefreshToken(ctx context.Context, rt *core.RefreshToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_token (id, user_id, family_id, token_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rt.ID, rt.UserID, rt.FamilyID, rt.TokenHash, rt.IssuedAt, rt.ExpiresAt)
	return mapErr(err)
}

func (s *Store) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*core.RefreshToken, error) {
	var rt core.RefreshToken
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, family_id, token_hash, issued_at, expires_at, revoked_at, superseded_by
		FROM refresh_token
		WHERE token_hash = $1
		LIMIT 1
	`, tokenHash).Scan(&rt.ID, &rt.UserID, &rt.FamilyID, &rt.TokenHash,
		&rt.IssuedAt, &rt.ExpiresAt, &rt.RevokedAt, &rt.SupersededBy)
	if err != nil {
		return nil, mapErr(err)
	}
	return &rt, nil
}

// RotateRefreshToken supersedes cur and inserts next in one statement. The
// UPDATE only matches while cur is live, so of two concurrent rotations
// exactly one inserts; the other scans no row and reports
// ErrRotationConflict.
func (s *Store) RotateRefreshToken(ctx context.Context, curID string, next *core.RefreshToken) error {
	var insertedID string
	err := s.pool.QueryRow(ctx, `
		WITH cur AS (
			UPDATE refresh_token
			   SET superseded_by = $2
			 WHERE id = $1
			   AND revoked_at IS NULL
			   AND superseded_by IS NULL
			   AND expires_at > now()
			RETURNING user_id, family_id
		)
		INSERT INTO refresh_token (id, user_id, family_id, token_hash, issued_at, expires_at)
		SELECT $2, user_id, family_id, $3, $4, $5 FROM cur
		RETURNING id
	`, curID, next.ID, next.TokenHash, next.IssuedAt, next.ExpiresAt).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ErrRotationConflict
		}
		return mapErr(err)
	}
	return nil
}

func (s *Store) RevokeFamily(ctx context.Context, familyID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_token SET revoked_at = now()
		WHERE family_id = $1 AND revoked_at IS NULL
	`, familyID)
	return mapErr(err)
}

func (s *Store) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_token SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)
	return mapErr(err)
}

func (s *Store) FamilyHasLive(ctx context.Context, familyID string, now time.Time) (bool, error) {
	var live bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM refresh_token
			WHERE family_id = $1
			  AND revoked_at IS NULL
			  AND superseded_by IS NULL
			  AND expires_at > $2
		)
	`, familyID, now).Scan(&live)
	if err != nil {
		return false, mapErr(err)
	}
	return live, nil
}
