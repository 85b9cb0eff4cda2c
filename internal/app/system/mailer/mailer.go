// internal/app/system/mailer/mailer.go
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/waffle/pantry/email"
	"go.uber.org/zap"
)

// ErrNoRecipient is returned when an Email has no To address.
var ErrNoRecipient = errors.New("mailer: email has no recipient")

// Email is a rendered message ready to send.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers email. Callers log failures; a send error is never fatal
// to the request that triggered it.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// Config selects and configures a Sender.
type Config struct {
	SendGridAPIKey string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	FromAddress string
	FromName    string
}

// New picks a sender from cfg: SendGrid when an API key is set, SMTP when a
// host is set, otherwise a sender that only logs.
func New(cfg Config, log *zap.Logger) Sender {
	switch {
	case cfg.SendGridAPIKey != "":
		return NewSendGrid(cfg.SendGridAPIKey, cfg.FromName, cfg.FromAddress, log)
	case cfg.SMTPHost != "":
		return NewSMTP(cfg, log)
	default:
		return NewLog(log)
	}
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *LogSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, e Email) error {
	if e.To == "" {
		return ErrNoRecipient
	}
	s.log.Info("email (not delivered)",
		zap.String("to", e.To),
		zap.String("subject", e.Subject),
		zap.String("text", e.TextBody))
	return nil
}

// htmlSender is the part of waffle's email.Sender that SMTPSender uses.
type htmlSender interface {
	SendHTML(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// SMTPSender delivers through an SMTP relay using waffle's pantry/email.
// It authenticates when a user is set and requires STARTTLS unless the
// port is 465.
type SMTPSender struct {
	client htmlSender
	log    *zap.Logger
}

func NewSMTP(cfg Config, log *zap.Logger) *SMTPSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &SMTPSender{
		client: email.NewSender(email.Config{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			Username:    cfg.SMTPUser,
			Password:    cfg.SMTPPassword,
			FromAddress: cfg.FromAddress,
			FromName:    cfg.FromName,
			UseSSL:      cfg.SMTPPort == 465,
		}),
		log: log,
	}
}

func (s *SMTPSender) Send(ctx context.Context, e Email) error {
	if e.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.SendHTML(ctx, e.To, e.Subject, e.TextBody, e.HTMLBody); err != nil {
		s.log.Warn("smtp send failed", zap.String("to", e.To), zap.Error(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
