package token

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Issuer signs and verifies access tokens (EdDSA). Access tokens are
// stateless: verification is signature + time claims only.
type Issuer struct {
	Iss       string
	AccessTTL time.Duration

	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewIssuer builds an issuer from a base64-encoded ed25519 seed. An empty
// seed generates an ephemeral key (dev/tests only: tokens die with the
// process).
func NewIssuer(iss, seedB64 string, accessTTL time.Duration) (*Issuer, error) {
	var priv ed25519.PrivateKey
	if seedB64 == "" {
		_, p, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, err
		}
		priv = p
	} else {
		seed, err := base64.StdEncoding.DecodeString(seedB64)
		if err != nil {
			return nil, fmt.Errorf("token: decode signing key: %w", err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("token: signing key must be %d bytes", ed25519.SeedSize)
		}
		priv = ed25519.NewKeyFromSeed(seed)
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	return &Issuer{
		Iss:       iss,
		AccessTTL: accessTTL,
		priv:      priv,
		pub:       priv.Public().(ed25519.PublicKey),
	}, nil
}

// IssueAccess signs an access token carrying the subject and its refresh
// family.
func (i *Issuer) IssueAccess(userID, familyID string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.AccessTTL)

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": userID,
		"fam": familyID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(i.priv)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccess checks signature and time claims. No store access.
func (i *Issuer) VerifyAccess(token string) (*Identity, error) {
	parsed, err := jwtv5.Parse(token,
		func(t *jwtv5.Token) (any, error) { return i.pub, nil },
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithIssuer(i.Iss),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	fam, _ := claims["fam"].(string)
	if sub == "" || fam == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: sub, FamilyID: fam}, nil
}
