package mailer

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/sendgrid/rest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_PicksSender(t *testing.T) {
	log := zap.NewNop()
	if _, ok := New(Config{SendGridAPIKey: "k", SMTPHost: "smtp.example.com"}, log).(*SendGridSender); !ok {
		t.Error("api key should select SendGrid")
	}
	if _, ok := New(Config{SMTPHost: "smtp.example.com"}, log).(*SMTPSender); !ok {
		t.Error("smtp host should select SMTP")
	}
	if _, ok := New(Config{}, log).(*LogSender); !ok {
		t.Error("empty config should select LogSender")
	}
}

func TestLogSender_LogsMessage(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLog(zap.New(core))

	if err := s.Send(context.Background(), Email{To: "a@example.com", Subject: "Hi"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if logs.FilterField(zap.String("to", "a@example.com")).Len() != 1 {
		t.Errorf("expected one log entry for recipient, got %v", logs.All())
	}
	if err := s.Send(context.Background(), Email{}); !errors.Is(err, ErrNoRecipient) {
		t.Errorf("err = %v, want ErrNoRecipient", err)
	}
}

// recordingClient stands in for the SMTP relay.
type recordingClient struct {
	to, subject, text, html string
	calls                   int
	err                     error
}

func (c *recordingClient) SendHTML(_ context.Context, to, subject, textBody, htmlBody string) error {
	c.calls++
	c.to, c.subject, c.text, c.html = to, subject, textBody, htmlBody
	return c.err
}

func TestSMTPSender_HandsMessageToClient(t *testing.T) {
	s := NewSMTP(Config{SMTPHost: "smtp.example.com", FromAddress: "noreply@example.com", FromName: "Camphub"}, nil)
	rc := &recordingClient{}
	s.client = rc

	err := s.Send(context.Background(), Email{To: "kid@example.com", Subject: "Bienvenue à Camphub", TextBody: "plain", HTMLBody: "<p>html</p>"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if rc.to != "kid@example.com" || rc.subject != "Bienvenue à Camphub" || rc.text != "plain" || rc.html != "<p>html</p>" {
		t.Errorf("client got %+v", rc)
	}
}

func TestSMTPSender_Errors(t *testing.T) {
	boom := errors.New("connection refused")
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name      string
		ctx       context.Context
		email     Email
		clientErr error
		want      error
		wantCalls int
	}{
		{"no recipient", context.Background(), Email{}, nil, ErrNoRecipient, 0},
		{"canceled", canceled, Email{To: "x@example.com"}, nil, context.Canceled, 0},
		{"relay failure", context.Background(), Email{To: "x@example.com", TextBody: "hi"}, boom, boom, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSMTP(Config{SMTPHost: "smtp.example.com", SMTPPort: 2525}, nil)
			rc := &recordingClient{err: tc.clientErr}
			s.client = rc
			if err := s.Send(tc.ctx, tc.email); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
			if rc.calls != tc.wantCalls {
				t.Errorf("client calls = %d, want %d", rc.calls, tc.wantCalls)
			}
		})
	}
}

func TestSendGridSender_StatusHandling(t *testing.T) {
	s := NewSendGrid("key", "Camphub", "noreply@example.com", nil)

	var got rest.Request
	s.api = func(req rest.Request) (*rest.Response, error) {
		got = req
		return &rest.Response{StatusCode: http.StatusAccepted}, nil
	}
	if err := s.Send(context.Background(), Email{To: "a@example.com", Subject: "s", TextBody: "t"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Method != http.MethodPost || !strings.Contains(string(got.Body), "a@example.com") {
		t.Errorf("request = %s %s", got.Method, got.Body)
	}

	s.api = func(rest.Request) (*rest.Response, error) {
		return &rest.Response{StatusCode: http.StatusUnauthorized, Body: "bad key"}, nil
	}
	if err := s.Send(context.Background(), Email{To: "a@example.com"}); err == nil {
		t.Error("expected error on 401")
	}
}

func TestSendGridSender_CanceledContext(t *testing.T) {
	s := NewSendGrid("key", "", "noreply@example.com", nil)
	s.api = func(rest.Request) (*rest.Response, error) {
		t.Fatal("api called with canceled context")
		return nil, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, Email{To: "a@example.com"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBuildInviteEmail(t *testing.T) {
	e := BuildInviteEmail("kid@example.com", LinkEmailData{
		SiteName:   "Camphub",
		SchoolName: "Camp Pinecone",
		Role:       "animator",
		Link:       "https://camphub.example/join?token=abc",
		ExpiresIn:  "7 days",
	})
	if e.To != "kid@example.com" || !strings.Contains(e.Subject, "Camp Pinecone") {
		t.Errorf("header = %q %q", e.To, e.Subject)
	}
	for _, body := range []string{e.TextBody, e.HTMLBody} {
		if !strings.Contains(body, "https://camphub.example/join?token=abc") {
			t.Errorf("body missing link: %q", body)
		}
	}
	if !strings.Contains(e.HTMLBody, "Accept invitation") {
		t.Error("html missing action label")
	}
}

func TestBuildPasswordResetEmail_EscapesHTML(t *testing.T) {
	e := BuildPasswordResetEmail("a@example.com", LinkEmailData{SiteName: "<b>Camp</b>", Link: "https://x/r", ExpiresIn: "1 hour"})
	if strings.Contains(e.HTMLBody, "<b>Camp</b>") {
		t.Error("site name not escaped in html body")
	}
	if !strings.Contains(e.HTMLBody, "Reset password") || !strings.Contains(e.TextBody, "1 hour") {
		t.Error("reset email missing content")
	}
}
