package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/bricks/internal/authflow"
	"github.com/dropDatabas3/bricks/internal/captcha"
	httpx "github.com/dropDatabas3/bricks/internal/http"
	"github.com/dropDatabas3/bricks/internal/http/handlers"
	"github.com/dropDatabas3/bricks/internal/store/memory"
	"github.com/dropDatabas3/bricks/internal/token"
)

type nopSender struct{}

func (nopSender) Send(to, subject, htmlBody, textBody string) error { return nil }

// newTestServer assembles the real router with in-memory storage: the same
// middleware chain and handlers production runs, minus postgres and redis.
func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()

	store := memory.New()
	issuer, err := token.NewIssuer("http://test.local", "", 15*time.Minute)
	require.NoError(t, err)
	tokenSvc := token.NewService(issuer, store, time.Hour)
	flows := authflow.NewService(store, tokenSvc, nopSender{}, authflow.Config{
		PasswordMinLength: 8,
		EmailBaseURL:      "http://test.local",
	})

	auth := &handlers.AuthHandler{
		Flows:   flows,
		Tokens:  tokenSvc,
		Users:   store,
		Captcha: captcha.AlwaysValid{},
		Cookie:  handlers.CookieConfig{Name: "session", SameSite: "lax"},
	}
	projects := handlers.NewProjectsHandler(store, map[string]int{"free": 2})

	router := httpx.NewRouter(httpx.RouterConfig{
		Auth: httpx.AuthConfig{Tokens: tokenSvc, Users: store, Strict: true},
	}, []httpx.Registrar{projects}, []httpx.Registrar{auth})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url, bearer string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, url, bearer string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

type sessionBody struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Plan  string `json:"plan"`
	} `json:"user"`
	Tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	} `json:"tokens"`
}

func registerUser(t *testing.T, base, email string) sessionBody {
	t.Helper()
	resp := postJSON(t, base+"/v1/auth/register", "", map[string]string{
		"email":    email,
		"password": "long enough pw",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out sessionBody
	decodeBody(t, resp, &out)
	require.NotEmpty(t, out.Tokens.AccessToken)
	require.NotEmpty(t, out.Tokens.RefreshToken)
	return out
}

func TestRegisterLoginMe(t *testing.T) {
	srv, _ := newTestServer(t)

	sess := registerUser(t, srv.URL, "alice@example.com")
	require.Equal(t, "alice@example.com", sess.User.Email)
	require.Equal(t, "free", sess.User.Plan)

	// /me with the fresh access token
	resp := getJSON(t, srv.URL+"/v1/auth/me", sess.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]any
	decodeBody(t, resp, &me)
	require.Equal(t, "alice@example.com", me["email"])

	// /me without a token
	resp = getJSON(t, srv.URL+"/v1/auth/me", "")
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// wrong password answers exactly like an unknown email
	for _, creds := range []map[string]string{
		{"email": "alice@example.com", "password": "wrong password"},
		{"email": "ghost@example.com", "password": "whatever pw"},
	} {
		resp := postJSON(t, srv.URL+"/v1/auth/login", "", creds)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	// duplicate registration
	resp = postJSON(t, srv.URL+"/v1/auth/register", "", map[string]string{
		"email": "alice@example.com", "password": "long enough pw",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRefreshRotationAndReuseOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := registerUser(t, srv.URL, "bob@example.com")

	// rotate
	resp := postJSON(t, srv.URL+"/v1/auth/refresh", "", map[string]string{
		"refresh_token": sess.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var next struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decodeBody(t, resp, &next)
	require.NotEqual(t, sess.Tokens.RefreshToken, next.RefreshToken)

	// replaying the spent token revokes the family
	resp = postJSON(t, srv.URL+"/v1/auth/refresh", "", map[string]string{
		"refresh_token": sess.Tokens.RefreshToken,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// the rotated successor is dead too
	resp = postJSON(t, srv.URL+"/v1/auth/refresh", "", map[string]string{
		"refresh_token": next.RefreshToken,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// strict verification rejects the revoked family's access token
	resp = getJSON(t, srv.URL+"/v1/auth/me", next.AccessToken)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutAllKillsEverySession(t *testing.T) {
	srv, _ := newTestServer(t)
	a := registerUser(t, srv.URL, "carol@example.com")

	loginResp := postJSON(t, srv.URL+"/v1/auth/login", "", map[string]string{
		"email": "carol@example.com", "password": "long enough pw",
	})
	require.Equal(t, http.StatusOK, loginResp.StatusCode)
	var b sessionBody
	decodeBody(t, loginResp, &b)

	resp := postJSON(t, srv.URL+"/v1/auth/logout_all", a.Tokens.AccessToken, map[string]string{})
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	for _, rt := range []string{a.Tokens.RefreshToken, b.Tokens.RefreshToken} {
		resp := postJSON(t, srv.URL+"/v1/auth/refresh", "", map[string]string{"refresh_token": rt})
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestProjectsOwnershipOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	owner := registerUser(t, srv.URL, "dana@example.com")
	other := registerUser(t, srv.URL, "eve@example.com")

	// create
	resp := postJSON(t, srv.URL+"/v1/projects", owner.Tokens.AccessToken, map[string]string{
		"name": "  Skunkworks  ", "notes": "internal only",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]any
	decodeBody(t, resp, &created)
	require.Equal(t, "Skunkworks", created["name"])
	require.Equal(t, "internal only", created["notes"])
	require.Equal(t, true, created["is_owner"])
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	// anonymous create is rejected before it reaches the engine
	resp = postJSON(t, srv.URL+"/v1/projects", "", map[string]string{"name": "x"})
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// a different user cannot see it, and an invented id answers the same
	for _, rid := range []string{id, "00000000-0000-0000-0000-000000000000"} {
		resp := getJSON(t, srv.URL+"/v1/projects/"+rid, other.Tokens.AccessToken)
		resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	// foreign writes are denied
	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/projects/"+id, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+other.Tokens.AccessToken)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	require.Equal(t, http.StatusForbidden, delResp.StatusCode)

	// lists only show the caller's own projects
	resp = getJSON(t, srv.URL+"/v1/projects", other.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Items []map[string]any `json:"items"`
	}
	decodeBody(t, resp, &listing)
	require.Empty(t, listing.Items)
}

func TestProjectQuotaOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := registerUser(t, srv.URL, "frank@example.com")

	// the free plan ceiling in this fixture is 2
	for i := 0; i < 2; i++ {
		resp := postJSON(t, srv.URL+"/v1/projects", sess.Tokens.AccessToken, map[string]string{
			"name": fmt.Sprintf("p%d", i),
		})
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp := postJSON(t, srv.URL+"/v1/projects", sess.Tokens.AccessToken, map[string]string{
		"name": "one too many",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var body map[string]any
	decodeBody(t, resp, &body)
	require.Equal(t, "quota_exceeded", body["code"])
}

func TestProjectValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := registerUser(t, srv.URL, "gina@example.com")

	resp := postJSON(t, srv.URL+"/v1/projects", sess.Tokens.AccessToken, map[string]string{
		"name": "   ",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
