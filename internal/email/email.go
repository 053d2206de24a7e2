// Package email sends transactional mail for the auth flows. The active
// provider is an explicit configuration choice resolved once at construction;
// nothing sniffs credentials at send time.
package email

import (
	"fmt"

	"github.com/dropDatabas3/bricks/internal/observability/logger"
)

// Sender is the one capability all providers implement.
type Sender interface {
	Send(to, subject, htmlBody, textBody string) error
}

// Provider names accepted in config.
const (
	ProviderSMTP = "smtp"
	ProviderLog  = "log"
)

type SMTPConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	From               string
	TLSMode            string // auto | starttls | ssl | none
	InsecureSkipVerify bool
}

// New resolves the configured provider. Unknown names are an error, not a
// silent fallback.
func New(provider string, smtp SMTPConfig) (Sender, error) {
	switch provider {
	case ProviderSMTP:
		return NewSMTPSender(smtp), nil
	case ProviderLog, "":
		return &LogSender{}, nil
	default:
		return nil, fmt.Errorf("email: unknown provider %q", provider)
	}
}

// LogSender writes the message to the log instead of delivering it.
// Dev and test default.
type LogSender struct{}

func (l *LogSender) Send(to, subject, htmlBody, textBody string) error {
	logger.Named("email").Info("email (log provider)",
		logger.String("to", to),
		logger.String("subject", subject),
		logger.String("body", textBody),
	)
	return nil
}
