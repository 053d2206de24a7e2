// Package token implements the session token lifecycle: stateless access
// tokens plus rotating, single-use refresh tokens grouped in families.
// Presenting a refresh token that is no longer live is treated as theft and
// kills the whole family.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/bricks/internal/observability/logger"
	tokens "github.com/dropDatabas3/bricks/internal/security/token"
	"github.com/dropDatabas3/bricks/internal/store/core"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken  = errors.New("token: invalid")
	ErrTokenExpired  = errors.New("token: expired")
	ErrUnknownToken  = errors.New("token: unknown refresh token")
	ErrReuseDetected = errors.New("token: refresh token reuse detected")
	ErrFamilyRevoked = errors.New("token: family revoked")
)

// Identity is the authenticated subject carried by an access token.
type Identity struct {
	UserID   string
	FamilyID string
}

// Pair is what a login or refresh hands back to the client.
type Pair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	FamilyID         string
}

type Service struct {
	issuer     *Issuer
	store      core.RefreshTokenStore
	refreshTTL time.Duration
}

func NewService(issuer *Issuer, store core.RefreshTokenStore, refreshTTL time.Duration) *Service {
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &Service{issuer: issuer, store: store, refreshTTL: refreshTTL}
}

// Issue starts a new refresh family for the user and signs the first access
// token against it.
func (s *Service) Issue(ctx context.Context, userID string) (*Pair, error) {
	familyID := uuid.NewString()
	return s.mint(ctx, userID, familyID, func(rec *core.RefreshToken) error {
		return s.store.CreateRefreshToken(ctx, rec)
	})
}

// VerifyAccess is a pure signature + expiry check.
func (s *Service) VerifyAccess(token string) (*Identity, error) {
	return s.issuer.VerifyAccess(token)
}

// Introspect verifies the access token and additionally requires its family
// to still have a live refresh token, so a password reset or reuse-detection
// revocation invalidates outstanding access tokens immediately.
func (s *Service) Introspect(ctx context.Context, token string) (*Identity, error) {
	id, err := s.issuer.VerifyAccess(token)
	if err != nil {
		return nil, err
	}
	live, err := s.store.FamilyHasLive(ctx, id.FamilyID, time.Now())
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, ErrFamilyRevoked
	}
	return id, nil
}

// Refresh rotates a live refresh token. Presenting a revoked or already
// superseded token revokes the entire family before the error is returned:
// the safety guarantee depends on that side effect landing first.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Pair, error) {
	hash := tokens.SHA256Base64URL(refreshToken)
	rec, err := s.store.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrUnknownToken
		}
		return nil, err
	}

	now := time.Now()
	if !now.Before(rec.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	if rec.RevokedAt != nil || rec.SupersededBy != nil {
		return nil, s.reuse(ctx, rec)
	}

	pair, err := s.mint(ctx, rec.UserID, rec.FamilyID, func(next *core.RefreshToken) error {
		return s.store.RotateRefreshToken(ctx, rec.ID, next)
	})
	if errors.Is(err, core.ErrRotationConflict) {
		// Lost the rotation race: someone else already spent this token.
		return nil, s.reuse(ctx, rec)
	}
	return pair, err
}

// RevokeFamily revokes one family (sign-out of one session lineage).
func (s *Service) RevokeFamily(ctx context.Context, familyID string) error {
	return s.store.RevokeFamily(ctx, familyID)
}

// RevokeUser revokes every family of the user (sign-out everywhere,
// password reset, security event).
func (s *Service) RevokeUser(ctx context.Context, userID string) error {
	return s.store.RevokeAllForUser(ctx, userID)
}

// RefreshTTL exposes the configured refresh lifetime (cookie Max-Age).
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *Service) reuse(ctx context.Context, rec *core.RefreshToken) error {
	if err := s.store.RevokeFamily(ctx, rec.FamilyID); err != nil {
		// Never swallow the revocation: without it the stolen family stays
		// usable, so surface the store failure instead of ReuseDetected.
		logger.Named("token").Error("family revocation failed on reuse",
			logger.FamilyID(rec.FamilyID), logger.Err(err))
		return err
	}
	logger.Named("token").Warn("refresh token reuse detected, family revoked",
		logger.UserID(rec.UserID), logger.FamilyID(rec.FamilyID))
	return ErrReuseDetected
}

func (s *Service) mint(ctx context.Context, userID, familyID string, persist func(*core.RefreshToken) error) (*Pair, error) {
	raw, err := tokens.GenerateOpaque(32)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	rec := &core.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		FamilyID:  familyID,
		TokenHash: tokens.SHA256Base64URL(raw),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if err := persist(rec); err != nil {
		return nil, err
	}

	access, exp, err := s.issuer.IssueAccess(userID, familyID)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:      access,
		AccessExpiresAt:  exp,
		RefreshToken:     raw,
		RefreshExpiresAt: rec.ExpiresAt,
		FamilyID:         familyID,
	}, nil
}
