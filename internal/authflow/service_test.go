package authflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/bricks/internal/authflow"
	"github.com/dropDatabas3/bricks/internal/store/core"
	"github.com/dropDatabas3/bricks/internal/store/memory"
	"github.com/dropDatabas3/bricks/internal/token"
)

// captureSender records outgoing mail and exposes the embedded code.
type captureSender struct {
	sent []capturedMail
}

type capturedMail struct {
	to, subject, text string
}

func (c *captureSender) Send(to, subject, htmlBody, textBody string) error {
	c.sent = append(c.sent, capturedMail{to: to, subject: subject, text: textBody})
	return nil
}

// lastCode pulls the code query parameter out of the most recent message.
func (c *captureSender) lastCode(t *testing.T) string {
	t.Helper()
	if len(c.sent) == 0 {
		t.Fatal("no mail sent")
	}
	text := c.sent[len(c.sent)-1].text
	i := strings.Index(text, "code=")
	if i < 0 {
		t.Fatalf("no code in message: %q", text)
	}
	code := text[i+len("code="):]
	if j := strings.IndexAny(code, "\n \t"); j >= 0 {
		code = code[:j]
	}
	return code
}

func newFlows(t *testing.T) (*authflow.Service, *token.Service, *memory.Store, *captureSender) {
	t.Helper()
	issuer, err := token.NewIssuer("http://test.local", "", 15*time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	store := memory.New()
	tokenSvc := token.NewService(issuer, store, time.Hour)
	sender := &captureSender{}
	flows := authflow.NewService(store, tokenSvc, sender, authflow.Config{
		VerifyTTL:         time.Hour,
		ResetTTL:          time.Hour,
		PasswordMinLength: 8,
		EmailBaseURL:      "http://test.local",
	})
	return flows, tokenSvc, store, sender
}

func TestSignUpAndSignIn(t *testing.T) {
	flows, _, _, sender := newFlows(t)
	ctx := context.Background()

	u, pair, err := flows.SignUp(ctx, "Alice@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email not normalized: %q", u.Email)
	}
	if u.EmailVerified {
		t.Error("new password account should start unverified")
	}
	if pair.AccessToken == "" {
		t.Error("signup should issue tokens")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("want 1 verification mail, got %d", len(sender.sent))
	}

	u2, _, err := flows.SignIn(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if u2.ID != u.ID {
		t.Errorf("SignIn resolved a different user")
	}
}

func TestSignInFailuresAreUniform(t *testing.T) {
	flows, _, _, _ := newFlows(t)
	ctx := context.Background()

	if _, _, err := flows.SignUp(ctx, "bob@example.com", "long enough pw"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	cases := []struct {
		name, email, pw string
	}{
		{"wrong password", "bob@example.com", "not the password"},
		{"unknown email", "nobody@example.com", "whatever pw"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := flows.SignIn(ctx, tc.email, tc.pw)
			if !errors.Is(err, authflow.ErrInvalidCredentials) {
				t.Fatalf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestSignUpRejectsWeakPasswordAndDuplicates(t *testing.T) {
	flows, _, _, _ := newFlows(t)
	ctx := context.Background()

	if _, _, err := flows.SignUp(ctx, "carol@example.com", "short"); !errors.Is(err, authflow.ErrWeakPassword) {
		t.Fatalf("weak password: err = %v, want ErrWeakPassword", err)
	}
	if _, _, err := flows.SignUp(ctx, "carol@example.com", "long enough pw"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, _, err := flows.SignUp(ctx, "carol@example.com", "long enough pw"); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("duplicate: err = %v, want ErrConflict", err)
	}
}

func TestEmailVerificationCodeIsSingleUse(t *testing.T) {
	flows, _, store, sender := newFlows(t)
	ctx := context.Background()

	u, _, err := flows.SignUp(ctx, "dave@example.com", "long enough pw")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	code := sender.lastCode(t)

	if err := flows.ConfirmEmail(ctx, code); err != nil {
		t.Fatalf("ConfirmEmail: %v", err)
	}
	got, err := store.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.EmailVerified {
		t.Error("email_verified not set")
	}

	if err := flows.ConfirmEmail(ctx, code); !errors.Is(err, core.ErrCodeUsed) {
		t.Fatalf("second use: err = %v, want ErrCodeUsed", err)
	}
}

func TestNewCodeInvalidatesOlderOne(t *testing.T) {
	flows, _, _, sender := newFlows(t)
	ctx := context.Background()

	if _, _, err := flows.SignUp(ctx, "erin@example.com", "long enough pw"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	first := sender.lastCode(t)

	if err := flows.RequestEmailVerification(ctx, "erin@example.com"); err != nil {
		t.Fatalf("RequestEmailVerification: %v", err)
	}
	second := sender.lastCode(t)

	if err := flows.ConfirmEmail(ctx, first); !errors.Is(err, core.ErrCodeUsed) {
		t.Fatalf("old code: err = %v, want ErrCodeUsed", err)
	}
	if err := flows.ConfirmEmail(ctx, second); err != nil {
		t.Fatalf("new code: %v", err)
	}
}

func TestPasswordResetRevokesAllSessions(t *testing.T) {
	flows, tokenSvc, _, sender := newFlows(t)
	ctx := context.Background()

	_, pair, err := flows.SignUp(ctx, "frank@example.com", "old password!")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	if err := flows.RequestPasswordReset(ctx, "frank@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	code := sender.lastCode(t)

	if err := flows.ResetPassword(ctx, code, "new password!"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	// The pre-reset session family must be dead.
	if _, err := tokenSvc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, token.ErrReuseDetected) {
		t.Fatalf("old session refresh: err = %v, want ErrReuseDetected", err)
	}

	// Old password out, new password in.
	if _, _, err := flows.SignIn(ctx, "frank@example.com", "old password!"); !errors.Is(err, authflow.ErrInvalidCredentials) {
		t.Fatalf("old password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := flows.SignIn(ctx, "frank@example.com", "new password!"); err != nil {
		t.Fatalf("new password: %v", err)
	}
}

func TestResetRequestsForUnknownEmailsAreSilent(t *testing.T) {
	flows, _, _, sender := newFlows(t)
	ctx := context.Background()

	if err := flows.RequestPasswordReset(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("unknown email should succeed silently: %v", err)
	}
	if err := flows.RequestEmailVerification(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("unknown email should succeed silently: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("no mail should go out for unknown accounts, got %d", len(sender.sent))
	}
}

func TestDisabledUserCannotSignIn(t *testing.T) {
	flows, _, store, _ := newFlows(t)
	ctx := context.Background()

	u, _, err := flows.SignUp(ctx, "gina@example.com", "long enough pw")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := store.DisableUser(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, _, err := flows.SignIn(ctx, "gina@example.com", "long enough pw"); !errors.Is(err, authflow.ErrInvalidCredentials) {
		t.Fatalf("disabled account: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRevokeSessionKillsOnlyThatFamily(t *testing.T) {
	flows, tokenSvc, _, _ := newFlows(t)
	ctx := context.Background()

	_, a, err := flows.SignUp(ctx, "hank@example.com", "long enough pw")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	_, b, err := flows.SignIn(ctx, "hank@example.com", "long enough pw")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if err := flows.RevokeSession(ctx, a.RefreshToken); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if _, err := tokenSvc.Refresh(ctx, a.RefreshToken); !errors.Is(err, token.ErrReuseDetected) {
		t.Errorf("revoked session: err = %v, want ErrReuseDetected", err)
	}
	if _, err := tokenSvc.Refresh(ctx, b.RefreshToken); err != nil {
		t.Errorf("unrelated session affected: %v", err)
	}

	// Unknown tokens are a silent no-op.
	if err := flows.RevokeSession(ctx, "never-issued"); err != nil {
		t.Errorf("unknown token: %v", err)
	}
}
