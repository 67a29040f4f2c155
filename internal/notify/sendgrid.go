package notify

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridMailer sends through the SendGrid v3 API.
type SendGridMailer struct {
	client    sendClient
	fromEmail string
	fromName  string
}

func NewSendGridMailer(apiKey, fromEmail, fromName string) (*SendGridMailer, error) {
	if apiKey == "" || fromEmail == "" {
		return nil, fmt.Errorf("sendgrid: SENDGRID_API_KEY and SENDGRID_FROM_EMAIL are required")
	}
	return &SendGridMailer{client: sendgrid.NewSendClient(apiKey), fromEmail: fromEmail, fromName: fromName}, nil
}

func (m *SendGridMailer) message(e Email) *mail.SGMailV3 {
	from := mail.NewEmail(m.fromName, m.fromEmail)
	to := mail.NewEmail(e.ToName, e.ToEmail)
	msg := mail.NewSingleEmail(from, e.Subject, to, e.Text, e.HTML)
	if len(e.ICS) > 0 {
		a := mail.NewAttachment()
		a.SetContent(base64.StdEncoding.EncodeToString(e.ICS))
		a.SetType("text/calendar; method=REQUEST")
		a.SetFilename("reservation.ics")
		a.SetDisposition("attachment")
		msg.AddAttachment(a)
	}
	return msg
}

func (m *SendGridMailer) Send(ctx context.Context, e Email) error {
	resp, err := m.client.SendWithContext(ctx, m.message(e))
	if err != nil {
		return fmt.Errorf("sendgrid: send to %s: %w", e.ToEmail, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
