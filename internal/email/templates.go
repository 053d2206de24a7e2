package email

import "fmt"

// Verification and reset notices, rendered as plain strings.

func VerifyEmailMessage(baseURL, code string) (subject, html, text string) {
	link := fmt.Sprintf("%s/verify-email?code=%s", baseURL, code)
	subject = "Verify your email"
	text = "Confirm your email address by opening this link:\n\n" + link + "\n\nThe link expires soon. If you didn't create an account, ignore this message."
	html = fmt.Sprintf(`<p>Confirm your email address:</p><p><a href=%q>Verify email</a></p><p>If you didn't create an account, ignore this message.</p>`, link)
	return subject, html, text
}

func PasswordResetMessage(baseURL, code string) (subject, html, text string) {
	link := fmt.Sprintf("%s/reset-password?code=%s", baseURL, code)
	subject = "Reset your password"
	text = "Someone requested a password reset for your account. Open this link to choose a new password:\n\n" + link + "\n\nIf this wasn't you, ignore this message; your password is unchanged."
	html = fmt.Sprintf(`<p>Someone requested a password reset for your account.</p><p><a href=%q>Choose a new password</a></p><p>If this wasn't you, ignore this message.</p>`, link)
	return subject, html, text
}
