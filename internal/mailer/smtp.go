package mailer

import (
	"context"
	"errors"
	"fmt"

	mail "github.com/wneessen/go-mail"

	"outreach-engine-go/internal/config"
)

// SMTPMailer sends through an authenticated SMTP submission port.
type SMTPMailer struct {
	client *mail.Client
	sender config.SenderConfig
}

func NewSMTP(sender config.SenderConfig, cfg config.SMTPConfig) (*SMTPMailer, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.User),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPMailer{client: client, sender: sender}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	out := mail.NewMsg()
	if err := out.FromFormat(m.sender.Name, m.sender.Email); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return fmt.Errorf("%w: %s", ErrBounced, msg.To)
	}
	if len(msg.CC) > 0 {
		if err := out.Cc(msg.CC...); err != nil {
			return fmt.Errorf("set cc addresses: %w", err)
		}
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextPlain, msg.Body)
	if msg.HTMLBody != "" {
		out.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	}

	if err := m.client.DialAndSendWithContext(ctx, out); err != nil {
		var sendErr *mail.SendError
		if errors.As(err, &sendErr) && sendErr.Reason == mail.ErrSMTPRcptTo {
			return fmt.Errorf("%w: %s: %v", ErrBounced, msg.To, err)
		}
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}
