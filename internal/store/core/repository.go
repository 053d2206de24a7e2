package core

import (
	"context"
	"time"
)

// Repository is the credential store contract. Postgres is the production
// adapter; the memory adapter backs tests and single-binary dev mode.
type Repository interface {
	UserStore
	RefreshTokenStore
	CodeStore

	Ping(ctx context.Context) error
	Close()
}

type UserStore interface {
	// CreateUserWithPassword creates the user plus its password identity in
	// one transaction. Duplicate email -> ErrConflict.
	CreateUserWithPassword(ctx context.Context, email, passwordHash string) (*User, error)

	// GetUserByEmail returns the user and its password identity (nil when the
	// account is OAuth-only).
	GetUserByEmail(ctx context.Context, email string) (*User, *Identity, error)

	GetUserByID(ctx context.Context, id string) (*User, error)

	SetEmailVerified(ctx context.Context, userID string) error

	// UpdatePasswordHash replaces (or creates) the password identity hash.
	UpdatePasswordHash(ctx context.Context, userID, phc string) error

	SetUserPlan(ctx context.Context, userID, plan string) error

	// DisableUser soft-deletes the account. Owned resources survive.
	DisableUser(ctx context.Context, userID string) error

	// FindByProviderID resolves a linked external identity.
	// Missing link -> ErrNotFound.
	FindByProviderID(ctx context.Context, provider, providerUserID string) (*User, error)

	// LinkProvider attaches (provider, providerUserID) to an existing user.
	// A concurrent link of the same external account -> ErrConflict.
	LinkProvider(ctx context.Context, userID, provider, providerUserID, email string) error

	// CreateUserFromProvider creates a user with a provider identity;
	// emailVerified carries the provider's attestation for the address. The
	// unique (provider, provider_user_id) key makes concurrent first logins
	// collide with ErrConflict instead of duplicating the account.
	CreateUserFromProvider(ctx context.Context, provider, providerUserID, email string, emailVerified bool) (*User, error)
}

type RefreshTokenStore interface {
	CreateRefreshToken(ctx context.Context, rt *RefreshToken) error

	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// RotateRefreshToken marks cur superseded by next and inserts next, as a
	// single atomic conditional step: the supersede only applies if cur is
	// still live. Two concurrent rotations of the same token yield exactly
	// one success; the loser gets ErrRotationConflict.
	RotateRefreshToken(ctx context.Context, curID string, next *RefreshToken) error

	// RevokeFamily revokes every record in the family. Idempotent.
	RevokeFamily(ctx context.Context, familyID string) error

	// RevokeAllForUser revokes every family belonging to the user.
	RevokeAllForUser(ctx context.Context, userID string) error

	// FamilyHasLive reports whether any record in the family is still live.
	FamilyHasLive(ctx context.Context, familyID string, now time.Time) (bool, error)
}

type CodeStore interface {
	// CreateCode stores a new code hash and invalidates older unused codes
	// of the same purpose for the same user.
	CreateCode(ctx context.Context, c *AuthCode) error

	// ConsumeCode marks the code used, exactly once. Second presentation ->
	// ErrCodeUsed; past expiry -> ErrCodeExpired; unknown -> ErrNotFound.
	ConsumeCode(ctx context.Context, tokenHash, purpose string) (userID string, err error)
}

// ProjectStore persists the example owned resource. Insert enforces the
// per-owner quota inside the same atomic unit as the write.
type ProjectStore interface {
	InsertProject(ctx context.Context, p *Project, maxPerOwner int) error
	GetProject(ctx context.Context, id string) (*Project, error)
	UpdateProject(ctx context.Context, p *Project) error
	DeleteProject(ctx context.Context, id string) error
	ListProjectsByOwner(ctx context.Context, ownerID string) ([]Project, error)
	CountProjectsByOwner(ctx context.Context, ownerID string) (int, error)
}
