package core

import "time"

// User is an account. PasswordHash lives on the password Identity, not here:
// OAuth-only users never have one.
type User struct {
	ID            string
	Email         string // always stored lowercased
	EmailVerified bool
	Plan          string // plan tag consumed by quota policy; "free" by default
	CreatedAt     time.Time
	DisabledAt    *time.Time // soft delete; users with live resources are never hard-deleted
}

// Identity is one credential linked to a user. provider "password" carries
// the argon2id PHC hash; external providers carry ProviderUserID instead.
// (provider, provider_user_id) is unique across the store.
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	Email          string
	PasswordHash   *string
	CreatedAt      time.Time
}

// RefreshToken is one link in a rotation chain. All descendants of one login
// share FamilyID. A record is live while RevokedAt and SupersededBy are both
// nil and ExpiresAt is in the future; the store guarantees at most one live
// record per family.
type RefreshToken struct {
	ID           string
	UserID       string
	FamilyID     string
	TokenHash    string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	RevokedAt    *time.Time
	SupersededBy *string
}

// Live reports whether the record can still be exchanged.
func (rt *RefreshToken) Live(now time.Time) bool {
	return rt.RevokedAt == nil && rt.SupersededBy == nil && now.Before(rt.ExpiresAt)
}

// Code purposes.
const (
	CodeEmailVerify   = "email_verify"
	CodePasswordReset = "password_reset"
)

// AuthCode is a single-use verification or reset code, stored hashed.
type AuthCode struct {
	ID        string
	UserID    string
	Purpose   string
	TokenHash string
	SentTo    string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Project is the example owned resource served through the ownership engine.
type Project struct {
	ID        string
	Owner     string
	Name      string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnerID satisfies ownership.Owned.
func (p Project) OwnerID() string { return p.Owner }
