// Package google implements Google sign-in over OIDC: discovery, code
// exchange and local id_token verification against Google's JWKS.
package google

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/bricks/internal/oauth"
)

const discoveryURL = "https://accounts.google.com/.well-known/openid-configuration"

type discoveryDoc struct {
	Issuer        string `json:"issuer"`
	AuthEndpoint  string `json:"authorization_endpoint"`
	TokenEndpoint string `json:"token_endpoint"`
	JWKSURI       string `json:"jwks_uri"`
}

type jwk struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"` // base64url
	E   string `json:"e"` // base64url
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

type OIDC struct {
	cfg    oauth.Config
	scopes []string

	http *http.Client
	sf   singleflight.Group

	mu    sync.RWMutex
	disc  *discoveryDoc
	discU time.Time

	jwks     *jwks
	jwksAt   time.Time
	jwksETag string
}

func New(cfg oauth.Config) *OIDC {
	return &OIDC{
		cfg:    cfg,
		scopes: []string{"openid", "email", "profile"},
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *OIDC) Name() string { return "google" }

func (g *OIDC) discovery(ctx context.Context) (*discoveryDoc, error) {
	g.mu.RLock()
	disc := g.disc
	stale := time.Since(g.discU) > 24*time.Hour
	g.mu.RUnlock()
	if disc != nil && !stale {
		return disc, nil
	}

	v, err, _ := g.sf.Do("discovery", func() (any, error) {
		req, _ := http.NewRequestWithContext(ctx, "GET", discoveryURL, nil)
		resp, err := g.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		var dd discoveryDoc
		if err := json.NewDecoder(resp.Body).Decode(&dd); err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.disc = &dd
		g.discU = time.Now()
		g.mu.Unlock()
		return &dd, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*discoveryDoc), nil
}

// getJWKS caches for an hour and revalidates with ETag. Concurrent refreshes
// collapse into one upstream fetch.
func (g *OIDC) getJWKS(ctx context.Context, uri string) (*jwks, error) {
	g.mu.RLock()
	j := g.jwks
	age := time.Since(g.jwksAt)
	g.mu.RUnlock()
	if j != nil && age < time.Hour {
		return j, nil
	}

	v, err, _ := g.sf.Do("jwks", func() (any, error) {
		req, _ := http.NewRequestWithContext(ctx, "GET", uri, nil)
		g.mu.RLock()
		etag := g.jwksETag
		g.mu.RUnlock()
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}
		resp, err := g.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotModified {
			g.mu.Lock()
			out := g.jwks
			g.jwksAt = time.Now()
			g.mu.Unlock()
			return out, nil
		}
		if resp.StatusCode/100 != 2 {
			return nil, fmt.Errorf("jwks http %d", resp.StatusCode)
		}
		var jj jwks
		if err := json.NewDecoder(resp.Body).Decode(&jj); err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.jwks = &jj
		g.jwksAt = time.Now()
		g.jwksETag = resp.Header.Get("ETag")
		g.mu.Unlock()
		return &jj, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*jwks), nil
}

func (g *OIDC) rsaKeyForKid(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	disc, err := g.discovery(ctx)
	if err != nil {
		return nil, err
	}
	keys, err := g.getJWKS(ctx, disc.JWKSURI)
	if err != nil {
		return nil, err
	}
	for _, k := range keys.Keys {
		if k.Kid == kid && strings.EqualFold(k.Kty, "RSA") {
			nb, err := base64.RawURLEncoding.DecodeString(k.N)
			if err != nil {
				return nil, err
			}
			eb, err := base64.RawURLEncoding.DecodeString(k.E)
			if err != nil {
				return nil, err
			}
			n := new(big.Int).SetBytes(nb)
			e := 0
			if len(eb) == 0 {
				e = 65537
			} else {
				for _, b := range eb {
					e = (e << 8) | int(b)
				}
			}
			return &rsa.PublicKey{N: n, E: e}, nil
		}
	}
	return nil, errors.New("kid not found")
}

func (g *OIDC) AuthURL(ctx context.Context, state, nonce string) (string, error) {
	disc, err := g.discovery(ctx)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(disc.AuthEndpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", g.cfg.ClientID)
	q.Set("redirect_uri", g.cfg.RedirectURL)
	q.Set("scope", strings.Join(g.scopes, " "))
	q.Set("state", state)
	q.Set("nonce", nonce)
	q.Set("access_type", "offline")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (g *OIDC) exchangeCode(ctx context.Context, code string) (*tokenResponse, error) {
	disc, err := g.discovery(ctx)
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", g.cfg.ClientID)
	form.Set("client_secret", g.cfg.ClientSecret)
	form.Set("redirect_uri", g.cfg.RedirectURL)

	req, _ := http.NewRequestWithContext(ctx, "POST", disc.TokenEndpoint, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		var b struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&b)
		return nil, fmt.Errorf("%w: http %d %s %s", oauth.ErrExchangeFailed, resp.StatusCode, b.Error, b.ErrorDescription)
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// Exchange trades the callback code and verifies the returned id_token
// (signature, iss, aud, nonce, exp) before trusting any claim in it.
func (g *OIDC) Exchange(ctx context.Context, code, nonce string) (*oauth.Account, error) {
	tr, err := g.exchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	claims, err := g.verifyIDToken(ctx, tr.IDToken, nonce)
	if err != nil {
		return nil, err
	}
	if claims.Email == "" {
		return nil, oauth.ErrNoEmail
	}
	return &oauth.Account{
		Provider:       "google",
		ProviderUserID: claims.Sub,
		Email:          claims.Email,
		EmailVerified:  claims.EmailVerified,
	}, nil
}

type idClaims struct {
	Sub           string
	Email         string
	EmailVerified bool
}

func (g *OIDC) verifyIDToken(ctx context.Context, idToken, expectedNonce string) (*idClaims, error) {
	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return nil, oauth.ErrBadIDToken
	}
	hb, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(hb, &header); err != nil {
		return nil, err
	}
	if header.Alg != "RS256" {
		return nil, fmt.Errorf("%w: unexpected alg %s", oauth.ErrBadIDToken, header.Alg)
	}

	key, err := g.rsaKeyForKid(ctx, header.Kid)
	if err != nil {
		return nil, err
	}
	tok, err := jwtv5.Parse(idToken,
		func(t *jwtv5.Token) (any, error) { return key, nil },
		jwtv5.WithValidMethods([]string{"RS256"}))
	if err != nil || !tok.Valid {
		return nil, oauth.ErrBadIDToken
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, oauth.ErrBadIDToken
	}

	iss, _ := claims["iss"].(string)
	if iss != "https://accounts.google.com" && iss != "accounts.google.com" {
		return nil, fmt.Errorf("%w: bad iss %s", oauth.ErrBadIDToken, iss)
	}
	audOK := false
	switch a := claims["aud"].(type) {
	case string:
		audOK = a == g.cfg.ClientID
	case []any:
		for _, v := range a {
			if s, _ := v.(string); s == g.cfg.ClientID {
				audOK = true
				break
			}
		}
	}
	if !audOK {
		return nil, fmt.Errorf("%w: bad aud", oauth.ErrBadIDToken)
	}
	if expectedNonce != "" {
		if got, _ := claims["nonce"].(string); got != expectedNonce {
			return nil, fmt.Errorf("%w: bad nonce", oauth.ErrBadIDToken)
		}
	}
	if expf, ok := claims["exp"].(float64); ok {
		if time.Unix(int64(expf), 0).Before(time.Now().Add(-30 * time.Second)) {
			return nil, fmt.Errorf("%w: expired", oauth.ErrBadIDToken)
		}
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	verified, _ := claims["email_verified"].(bool)
	return &idClaims{Sub: sub, Email: email, EmailVerified: verified}, nil
}
