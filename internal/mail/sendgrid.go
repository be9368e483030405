package mail

import (
	"context"
	"encoding/base64"
	"fmt"

	"hvacbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendGridEndpoint = "/v3/mail/send"

// SendGridMailer delivers messages through the SendGrid v3 API.
type SendGridMailer struct {
	apiKey string
	host   string
	from   *sgmail.Email
	ready  bool
	logger *zerolog.Logger
}

// NewSendGridMailer targets host, or the public API when host is empty.
func NewSendGridMailer(apiKey, host, fromAddress, fromName string, logger *zerolog.Logger) *SendGridMailer {
	return &SendGridMailer{
		apiKey: apiKey,
		host:   host,
		from:   sgmail.NewEmail(fromName, fromAddress),
		ready:  apiKey != "" && fromAddress != "",
		logger: logger,
	}
}

func (m *SendGridMailer) Send(ctx context.Context, msg *models.Message) error {
	if !m.ready {
		return ErrNotConfigured
	}

	to := sgmail.NewEmail(msg.ToName, msg.To)
	message := sgmail.NewSingleEmail(m.from, msg.Subject, to, msg.Text, "")

	if len(msg.Invite) > 0 {
		attachment := sgmail.NewAttachment()
		attachment.SetContent(base64.StdEncoding.EncodeToString(msg.Invite))
		attachment.SetType("text/calendar; method=REQUEST")
		attachment.SetFilename(models.InviteFilename)
		attachment.SetDisposition("attachment")
		message.AddAttachment(attachment)
	}

	response, err := m.client().SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send to %s: %w", msg.To, err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		m.logger.Debug().Str("to", msg.To).Int("status", response.StatusCode).Msg("mail sent")
		return nil
	}

	return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
}

// client is built per message: sendgrid.Client stores the request body on itself.
func (m *SendGridMailer) client() *sendgrid.Client {
	req := sendgrid.GetRequest(m.apiKey, sendGridEndpoint, m.host)
	req.Method = "POST"
	return &sendgrid.Client{Request: req}
}
