// internal/app/system/mailer/sendgrid.go
package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

// SendGridSender delivers through the SendGrid v3 API.
type SendGridSender struct {
	key  string
	from *sgmail.Email
	log  *zap.Logger

	api func(req rest.Request) (*rest.Response, error)
}

func NewSendGrid(key, fromName, fromAddress string, log *zap.Logger) *SendGridSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &SendGridSender{
		key:  key,
		from: sgmail.NewEmail(fromName, fromAddress),
		log:  log,
		api:  sendgrid.API,
	}
}

func (s *SendGridSender) prepare(e Email) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = e.Subject
	p.AddTos(sgmail.NewEmail("", e.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", e.TextBody))
	if e.HTMLBody != "" {
		m.AddContent(sgmail.NewContent("text/html", e.HTMLBody))
	}
	return m
}

func (s *SendGridSender) Send(ctx context.Context, e Email) error {
	if e.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	req := sendgrid.GetRequest(s.key, sendGridEndpoint, sendGridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(e))

	res, err := s.api(req)
	if err != nil {
		s.log.Warn("sendgrid request failed", zap.String("to", e.To), zap.Error(err))
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		s.log.Warn("sendgrid rejected message",
			zap.String("to", e.To),
			zap.Int("status", res.StatusCode),
			zap.String("body", res.Body))
		return fmt.Errorf("sendgrid: status %d", res.StatusCode)
	}
	return nil
}
