package pg

import (
	"context"
	"errors"
	"strings"

	"github.com/dropDatabas3/bricks/internal/observability/logger"
	"github.com/dropDatabas3/bricks/internal/store/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateUserWithPassword(ctx context.Context, email, passwordHash string) (*core.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var u core.User
	err = tx.QueryRow(ctx, `
		INSERT INTO app_user (id, email, email_verified, plan)
		VALUES ($1, LOWER($2), FALSE, 'free')
		RETURNING id, email, email_verified, plan, created_at
	`, uuid.NewString(), email).Scan(&u.ID, &u.Email, &u.EmailVerified, &u.Plan, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO identity (id, user_id, provider, email, password_hash)
		VALUES ($1, $2, 'password', LOWER($3), $4)
	`, uuid.NewString(), u.ID, email, passwordHash)
	if err != nil {
		return nil, mapErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Named("pg").Error("create user commit failed", logger.Err(err))
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*core.User, *core.Identity, error) {
	var u core.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, email_verified, plan, created_at, disabled_at
		FROM app_user
		WHERE email = LOWER($1)
		LIMIT 1
	`, email).Scan(&u.ID, &u.Email, &u.EmailVerified, &u.Plan, &u.CreatedAt, &u.DisabledAt)
	if err != nil {
		return nil, nil, mapErr(err)
	}

	var id core.Identity
	err = s.pool.QueryRow(ctx, `
		SELECT id, user_id, provider, COALESCE(provider_user_id,''), COALESCE(email,''), password_hash, created_at
		FROM identity
		WHERE user_id = $1 AND provider = 'password'
	`, u.ID).Scan(&id.ID, &id.UserID, &id.Provider, &id.ProviderUserID, &id.Email, &id.PasswordHash, &id.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// OAuth-only account: user without a password identity.
			return &u, nil, nil
		}
		return nil, nil, mapErr(err)
	}
	return &u, &id, nil
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (*core.User, error) {
	var u core.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, email_verified, plan, created_at, disabled_at
		FROM app_user
		WHERE id = $1
	`, userID).Scan(&u.ID, &u.Email, &u.EmailVerified, &u.Plan, &u.CreatedAt, &u.DisabledAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) SetEmailVerified(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE app_user SET email_verified = TRUE WHERE id = $1`, userID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, phc string) error {
	// Upsert: reset on an OAuth-only account creates the password identity.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO identity (id, user_id, provider, email, password_hash)
		SELECT $3, id, 'password', email, $2 FROM app_user WHERE id = $1
		ON CONFLICT (user_id, provider)
		DO UPDATE SET password_hash = EXCLUDED.password_hash
	`, userID, phc, uuid.NewString())
	return mapErr(err)
}

func (s *Store) SetUserPlan(ctx context.Context, userID, plan string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE app_user SET plan = $2 WHERE id = $1`, userID, strings.ToLower(plan))
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) DisableUser(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE app_user SET disabled_at = now() WHERE id = $1 AND disabled_at IS NULL`, userID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) FindByProviderID(ctx context.Context, provider, providerUserID string) (*core.User, error) {
	var u core.User
	err := s.pool.QueryRow(ctx, `
		SELECT u.id, u.email, u.email_verified, u.plan, u.created_at, u.disabled_at
		FROM identity i
		JOIN app_user u ON u.id = i.user_id
		WHERE i.provider = $1 AND i.provider_user_id = $2
		LIMIT 1
	`, provider, providerUserID).Scan(&u.ID, &u.Email, &u.EmailVerified, &u.Plan, &u.CreatedAt, &u.DisabledAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) LinkProvider(ctx context.Context, userID, provider, providerUserID, email string) error {
	// uq_identity_provider_account makes concurrent first links collide.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO identity (id, user_id, provider, provider_user_id, email)
		VALUES ($1, $2, $3, $4, LOWER($5))
	`, uuid.NewString(), userID, provider, providerUserID, email)
	return mapErr(err)
}

func (s *Store) CreateUserFromProvider(ctx context.Context, provider, providerUserID, email string, emailVerified bool) (*core.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var u core.User
	err = tx.QueryRow(ctx, `
		INSERT INTO app_user (id, email, email_verified, plan)
		VALUES ($1, LOWER($2), $3, 'free')
		RETURNING id, email, email_verified, plan, created_at
	`, uuid.NewString(), email, emailVerified).Scan(&u.ID, &u.Email, &u.EmailVerified, &u.Plan, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO identity (id, user_id, provider, provider_user_id, email)
		VALUES ($1, $2, $3, $4, LOWER($5))
	`, uuid.NewString(), u.ID, provider, providerUserID, email)
	if err != nil {
		return nil, mapErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}
