package mail

import (
	"errors"
	"fmt"

	"hvacbook/internal/config"
	"hvacbook/internal/domain"

	"github.com/rs/zerolog"
)

// ErrNotConfigured is returned by every Send when the provider has no credentials.
var ErrNotConfigured = errors.New("mail transport is not configured")

// New builds the mailer selected by cfg.Provider. fromName is the display
// name on outgoing mail.
func New(cfg config.MailConfig, fromName string, logger *zerolog.Logger) (domain.Mailer, error) {
	switch cfg.Provider {
	case config.MailSMTP, "":
		return NewSMTPMailer(cfg, fromName, logger), nil
	case config.MailSendGrid:
		return NewSendGridMailer(cfg.SendGridAPIKey, "", cfg.FromAddress, fromName, logger), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}
