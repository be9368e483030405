package mail

import (
	"context"
	"fmt"
	"io"

	"hvacbook/internal/config"
	"hvacbook/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// SMTPMailer delivers messages through an authenticated SMTP relay.
type SMTPMailer struct {
	from     string
	fromName string
	ready    bool
	send     func(msg *gomail.Message) error
	logger   *zerolog.Logger
}

func NewSMTPMailer(cfg config.MailConfig, fromName string, logger *zerolog.Logger) *SMTPMailer {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	from := cfg.FromAddress
	if from == "" {
		from = cfg.Username
	}
	return &SMTPMailer{
		from:     from,
		fromName: fromName,
		ready:    cfg.Username != "" && cfg.Password != "",
		send:     func(msg *gomail.Message) error { return dialer.DialAndSend(msg) },
		logger:   logger,
	}
}

// Send gives up when ctx is done. gomail has no context support, so the
// dial continues in the background and its result is dropped.
func (m *SMTPMailer) Send(ctx context.Context, msg *models.Message) error {
	if !m.ready {
		return ErrNotConfigured
	}

	gm := m.build(msg)

	errc := make(chan error, 1)
	go func() {
		errc <- m.send(gm)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", msg.To, err)
		}
		m.logger.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("mail sent")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %s: %w", msg.To, ctx.Err())
	}
}

func (m *SMTPMailer) build(msg *models.Message) *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.from, m.fromName)
	gm.SetAddressHeader("To", msg.To, msg.ToName)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Text)

	if len(msg.Invite) > 0 {
		invite := msg.Invite
		// calendar clients look for the inline part, others for the attachment
		gm.AddAlternative("text/calendar; method=REQUEST", string(invite))
		gm.Attach(models.InviteFilename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(invite)
				return err
			}),
			gomail.SetHeader(map[string][]string{
				"Content-Type": {fmt.Sprintf("text/calendar; method=REQUEST; name=%q", models.InviteFilename)},
			}),
		)
	}
	return gm
}
