package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"outreach-engine-go/internal/config"
)

// GmailMailer sends through the Gmail API using an OAuth2 refresh token.
type GmailMailer struct {
	service   *gmail.Service
	userEmail string
	sender    config.SenderConfig
}

func NewGmail(sender config.SenderConfig, cfg config.GmailConfig) (*GmailMailer, error) {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
	}
	tokenSource := oauth2Config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	})

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	userEmail := cfg.UserEmail
	if userEmail == "" {
		userEmail = sender.Email
	}
	return &GmailMailer{service: service, userEmail: userEmail, sender: sender}, nil
}

func (m *GmailMailer) Send(ctx context.Context, msg Message) error {
	raw := m.buildRawMessage(msg)
	encoded := base64.URLEncoding.EncodeToString([]byte(raw))

	_, err := m.service.Users.Messages.Send(m.userEmail, &gmail.Message{Raw: encoded}).Context(ctx).Do()
	if err != nil {
		if strings.Contains(err.Error(), "Invalid To header") {
			return fmt.Errorf("%w: %s: %v", ErrBounced, msg.To, err)
		}
		return fmt.Errorf("gmail send to %s: %w", msg.To, err)
	}
	return nil
}

func (m *GmailMailer) buildRawMessage(msg Message) string {
	var b strings.Builder

	from := m.userEmail
	if m.sender.Name != "" {
		from = fmt.Sprintf("%s <%s>", m.sender.Name, m.userEmail)
	}
	b.WriteString(fmt.Sprintf("From: %s\r\n", from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	if len(msg.CC) > 0 {
		b.WriteString(fmt.Sprintf("Cc: %s\r\n", strings.Join(msg.CC, ", ")))
	}
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTMLBody != "" {
		boundary := fmt.Sprintf("outreach-%d", time.Now().UnixNano())
		b.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary))
		b.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		b.WriteString("Content-Transfer-Encoding: 7bit\r\n\r\n")
		b.WriteString(msg.Body)
		b.WriteString(fmt.Sprintf("\r\n--%s\r\n", boundary))
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
		b.WriteString("Content-Transfer-Encoding: 7bit\r\n\r\n")
		b.WriteString(msg.HTMLBody)
		b.WriteString(fmt.Sprintf("\r\n--%s--\r\n", boundary))
	} else {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		b.WriteString("Content-Transfer-Encoding: 7bit\r\n\r\n")
		b.WriteString(msg.Body)
	}
	return b.String()
}

// TestConnection verifies the Gmail API credentials by loading the profile.
func (m *GmailMailer) TestConnection(ctx context.Context) error {
	_, err := m.service.Users.GetProfile(m.userEmail).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to test Gmail API connection: %w", err)
	}
	return nil
}
