package core

import "errors"

var (
	// ErrNotFound: no row matched.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict: a unique key collided (duplicate email, duplicate
	// provider link, double insert under a race).
	ErrConflict = errors.New("store: conflict")

	// ErrRotationConflict: the conditional supersede step matched no live
	// record. The caller lost a rotation race or is replaying an old token;
	// either way it must be treated as reuse.
	ErrRotationConflict = errors.New("store: rotation conflict")

	// ErrCodeUsed / ErrCodeExpired: single-use code state.
	ErrCodeUsed    = errors.New("store: code already used")
	ErrCodeExpired = errors.New("store: code expired")

	// ErrQuotaExceeded: the guarded insert would push the owner past the
	// configured maximum.
	ErrQuotaExceeded = errors.New("store: quota exceeded")

	// ErrTransient: the store was unreachable or timed out. Retryable;
	// never security-relevant.
	ErrTransient = errors.New("store: transient error")
)
