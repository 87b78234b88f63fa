// Package email delivers transactional messages through SendGrid.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/proppilot-backend/pkg/config"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Message is a single transactional email.
type Message struct {
	ToEmail   string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
	Category  string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender sends through the SendGrid v3 mail API.
type SendGridSender struct {
	client sendGridClient
	from   *mail.Email
}

// NewSender returns a SendGrid sender, or a LogSender when no API key is set.
func NewSender(cfg config.SendgridConfig, logg *logger.Logger) (Sender, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &LogSender{logg: logg}, nil
	}
	return NewSendGridSender(cfg)
}

// NewSendGridSender constructs the SendGrid-backed sender.
func NewSendGridSender(cfg config.SendgridConfig) (*SendGridSender, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("sendgrid api key is required")
	}
	if strings.TrimSpace(cfg.DefaultFrom) == "" {
		return nil, errors.New("sendgrid from address is required")
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.DefaultFrom),
	}, nil
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.ToEmail) == "" {
		return errors.New("recipient email is required")
	}
	to := mail.NewEmail(msg.ToName, msg.ToEmail)
	payload := mail.NewSingleEmail(s.from, msg.Subject, to, msg.PlainText, msg.HTML)
	if msg.Category != "" {
		payload.AddCategories(msg.Category)
	}

	resp, err := s.client.SendWithContext(ctx, payload)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogSender records messages in the log instead of delivering them.
type LogSender struct {
	logg *logger.Logger
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if s.logg == nil {
		return nil
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"to":       msg.ToEmail,
		"subject":  msg.Subject,
		"category": msg.Category,
	})
	s.logg.Info(ctx, "email delivery skipped (sendgrid not configured)")
	return nil
}
