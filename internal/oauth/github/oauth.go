// Package github implements GitHub sign-in. GitHub is plain OAuth 2.0, no
// id_token: the user and a verified email come from separate API calls made
// with the exchanged access token.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/bricks/internal/oauth"
)

const (
	authEndpoint  = "https://github.com/login/oauth/authorize"
	tokenEndpoint = "https://github.com/login/oauth/access_token"
	userEndpoint  = "https://api.github.com/user"
	emailEndpoint = "https://api.github.com/user/emails"
)

type OAuth struct {
	cfg    oauth.Config
	scopes []string
	http   *http.Client
}

func New(cfg oauth.Config) *OAuth {
	return &OAuth{
		cfg:    cfg,
		scopes: []string{"user:email", "read:user"},
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *OAuth) Name() string { return "github" }

// AuthURL builds the consent redirect. GitHub has no nonce parameter; replay
// protection rides on the state binding alone.
func (g *OAuth) AuthURL(ctx context.Context, state, nonce string) (string, error) {
	u, err := url.Parse(authEndpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("client_id", g.cfg.ClientID)
	q.Set("redirect_uri", g.cfg.RedirectURL)
	q.Set("scope", strings.Join(g.scopes, " "))
	q.Set("state", state)
	q.Set("allow_signup", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	Error       string `json:"error,omitempty"`
	ErrorDesc   string `json:"error_description,omitempty"`
}

func (g *OAuth) exchangeCode(ctx context.Context, code string) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", g.cfg.ClientID)
	form.Set("client_secret", g.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", g.cfg.RedirectURL)

	req, err := http.NewRequestWithContext(ctx, "POST", tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tr.Error != "" {
		return nil, fmt.Errorf("%w: %s %s", oauth.ErrExchangeFailed, tr.Error, tr.ErrorDesc)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access_token in response", oauth.ErrExchangeFailed)
	}
	return &tr, nil
}

type userInfo struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"`
}

type emailInfo struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *OAuth) getJSON(ctx context.Context, endpoint, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github api: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// primaryEmail prefers the primary verified address, then any verified one.
func (g *OAuth) primaryEmail(ctx context.Context, accessToken string) (string, bool, error) {
	var emails []emailInfo
	if err := g.getJSON(ctx, emailEndpoint, accessToken, &emails); err != nil {
		return "", false, err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, true, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, true, nil
		}
	}
	return "", false, nil
}

// Exchange trades the callback code, then resolves the user id and a
// verified email through the API.
func (g *OAuth) Exchange(ctx context.Context, code, nonce string) (*oauth.Account, error) {
	tr, err := g.exchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	var u userInfo
	if err := g.getJSON(ctx, userEndpoint, tr.AccessToken, &u); err != nil {
		return nil, err
	}

	email, verified, err := g.primaryEmail(ctx, tr.AccessToken)
	if err != nil {
		return nil, err
	}
	if email == "" {
		// Profile email is a fallback; it is not attested as verified.
		email = u.Email
	}
	if email == "" {
		return nil, oauth.ErrNoEmail
	}

	return &oauth.Account{
		Provider:       "github",
		ProviderUserID: strconv.FormatInt(u.ID, 10),
		Email:          email,
		EmailVerified:  verified,
	}, nil
}
