// Package authflow orchestrates sign-up, sign-in, email verification,
// password reset and OAuth completion over the credential store and the
// token service. Each flow is a short state machine; none of them blocks on
// the email collaborator.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/bricks/internal/email"
	"github.com/dropDatabas3/bricks/internal/observability/logger"
	"github.com/dropDatabas3/bricks/internal/security/password"
	tokens "github.com/dropDatabas3/bricks/internal/security/token"
	"github.com/dropDatabas3/bricks/internal/store/core"
	"github.com/dropDatabas3/bricks/internal/token"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials covers every sign-in failure mode so responses
	// never reveal whether an email exists.
	ErrInvalidCredentials = errors.New("authflow: invalid credentials")

	ErrWeakPassword = errors.New("authflow: password too short")
)

type Config struct {
	VerifyTTL         time.Duration
	ResetTTL          time.Duration
	PasswordMinLength int
	EmailBaseURL      string
}

type Service struct {
	store  core.Repository
	tokens *token.Service
	sender email.Sender
	cfg    Config
}

func NewService(store core.Repository, ts *token.Service, sender email.Sender, cfg Config) *Service {
	if cfg.VerifyTTL <= 0 {
		cfg.VerifyTTL = 24 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.PasswordMinLength <= 0 {
		cfg.PasswordMinLength = 8
	}
	return &Service{store: store, tokens: ts, sender: sender, cfg: cfg}
}

// SignUp creates an unverified account, issues a verification code and a
// token pair. The account exists and the tokens are valid even if the
// verification email cannot be delivered.
func (s *Service) SignUp(ctx context.Context, emailAddr, plain string) (*core.User, *token.Pair, error) {
	emailAddr = normalizeEmail(emailAddr)
	if len(plain) < s.cfg.PasswordMinLength {
		return nil, nil, ErrWeakPassword
	}

	phc, err := password.Hash(password.Default, plain)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.store.CreateUserWithPassword(ctx, emailAddr, phc)
	if err != nil {
		return nil, nil, err // core.ErrConflict on duplicate email
	}

	if err := s.sendCode(ctx, u.ID, emailAddr, core.CodeEmailVerify, s.cfg.VerifyTTL); err != nil {
		// State transition already committed; delivery is best-effort.
		logger.Named("authflow").Error("verification email failed",
			logger.UserID(u.ID), logger.Err(err))
	}

	pair, err := s.tokens.Issue(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

// SignIn verifies credentials and starts a new token family. Unverified
// accounts may sign in; resource policies decide what they can reach.
func (s *Service) SignIn(ctx context.Context, emailAddr, plain string) (*core.User, *token.Pair, error) {
	emailAddr = normalizeEmail(emailAddr)

	u, id, err := s.store.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Burn a hash anyway so missing accounts cost the same time.
			_ = password.Verify(plain, decoyPHC)
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if u.DisabledAt != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if id == nil || id.PasswordHash == nil || *id.PasswordHash == "" {
		_ = password.Verify(plain, decoyPHC)
		return nil, nil, ErrInvalidCredentials
	}
	if !password.Verify(plain, *id.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.tokens.Issue(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

// RequestEmailVerification re-sends a verification code. Unknown emails
// succeed silently.
func (s *Service) RequestEmailVerification(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	u, _, err := s.store.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return err
	}
	if u.EmailVerified {
		return nil
	}
	return s.sendCode(ctx, u.ID, emailAddr, core.CodeEmailVerify, s.cfg.VerifyTTL)
}

// ConfirmEmail consumes a verification code and flips email_verified.
func (s *Service) ConfirmEmail(ctx context.Context, code string) error {
	userID, err := s.store.ConsumeCode(ctx, tokens.SHA256Base64URL(code), core.CodeEmailVerify)
	if err != nil {
		return err
	}
	return s.store.SetEmailVerified(ctx, userID)
}

// RequestPasswordReset issues a reset code; older reset codes for the same
// user stop working. Unknown emails succeed silently.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	u, _, err := s.store.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.sendCode(ctx, u.ID, emailAddr, core.CodePasswordReset, s.cfg.ResetTTL)
}

// ResetPassword consumes the code, writes the new hash and revokes every
// refresh family of the user. The revocation is part of the reset, not an
// optional cleanup: all outstanding sessions must die with the old password.
func (s *Service) ResetPassword(ctx context.Context, code, newPlain string) error {
	if len(newPlain) < s.cfg.PasswordMinLength {
		return ErrWeakPassword
	}
	userID, err := s.store.ConsumeCode(ctx, tokens.SHA256Base64URL(code), core.CodePasswordReset)
	if err != nil {
		return err
	}
	phc, err := password.Hash(password.Default, newPlain)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePasswordHash(ctx, userID, phc); err != nil {
		return err
	}
	if err := s.tokens.RevokeUser(ctx, userID); err != nil {
		return fmt.Errorf("authflow: revoke sessions after reset: %w", err)
	}
	logger.Named("authflow").Info("password reset, all sessions revoked", logger.UserID(userID))
	return nil
}

// RevokeSession revokes the family of the presented refresh token (logout of
// one session lineage). Unknown tokens are a no-op.
func (s *Service) RevokeSession(ctx context.Context, refreshToken string) error {
	rec, err := s.store.GetRefreshTokenByHash(ctx, tokens.SHA256Base64URL(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.tokens.RevokeFamily(ctx, rec.FamilyID)
}

func (s *Service) sendCode(ctx context.Context, userID, to, purpose string, ttl time.Duration) error {
	raw, err := tokens.GenerateOpaque(32)
	if err != nil {
		return err
	}
	rec := &core.AuthCode{
		ID:        uuid.NewString(),
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: tokens.SHA256Base64URL(raw),
		SentTo:    to,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.store.CreateCode(ctx, rec); err != nil {
		return err
	}

	var subject, html, text string
	switch purpose {
	case core.CodePasswordReset:
		subject, html, text = email.PasswordResetMessage(s.cfg.EmailBaseURL, raw)
	default:
		subject, html, text = email.VerifyEmailMessage(s.cfg.EmailBaseURL, raw)
	}
	return s.sender.Send(to, subject, html, text)
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// decoyPHC keeps the failure path doing argon2 work so response timing does
// not separate "no such user" from "wrong password".
const decoyPHC = "$argon2id$v=19$m=65536,t=3,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
