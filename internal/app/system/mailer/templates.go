// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// LinkEmailData fills the invite and password-reset templates.
type LinkEmailData struct {
	SiteName   string
	SchoolName string // invites only
	Role       string // invites only
	Link       string
	ExpiresIn  string // e.g. "7 days"
}

// BuildInviteEmail renders the invitation to join a school.
func BuildInviteEmail(to string, data LinkEmailData) Email {
	var text bytes.Buffer
	fmt.Fprintf(&text, "You have been invited to join %s on %s as %s.\n\n", data.SchoolName, data.SiteName, data.Role)
	text.WriteString("Accept the invitation:\n")
	text.WriteString(data.Link + "\n\n")
	fmt.Fprintf(&text, "This invitation expires in %s.\n", data.ExpiresIn)

	return Email{
		To:       to,
		Subject:  fmt.Sprintf("You're invited to %s", data.SchoolName),
		TextBody: text.String(),
		HTMLBody: render(inviteTmpl, data),
	}
}

// BuildPasswordResetEmail renders the password-reset message.
func BuildPasswordResetEmail(to string, data LinkEmailData) Email {
	var text bytes.Buffer
	fmt.Fprintf(&text, "Someone asked to reset the password of your %s account.\n\n", data.SiteName)
	text.WriteString("Choose a new password:\n")
	text.WriteString(data.Link + "\n\n")
	fmt.Fprintf(&text, "This link expires in %s.\n\n", data.ExpiresIn)
	text.WriteString("If you did not ask for this, you can ignore this email.\n")

	return Email{
		To:       to,
		Subject:  fmt.Sprintf("Reset your %s password", data.SiteName),
		TextBody: text.String(),
		HTMLBody: render(resetTmpl, data),
	}
}

func render(t *template.Template, data LinkEmailData) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return ""
	}
	return buf.String()
}

var (
	inviteTmpl = template.Must(template.New("invite").Parse(layoutHTML + inviteBodyHTML))
	resetTmpl  = template.Must(template.New("reset").Parse(layoutHTML + resetBodyHTML))
)

const layoutHTML = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #15803d;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">{{template "body" .}}
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center">
                    <a href="{{.Link}}" style="display: inline-block; padding: 14px 32px; background-color: #15803d; color: #ffffff; text-decoration: none; font-size: 16px; border-radius: 6px;">{{template "action" .}}</a>
                  </td>
                </tr>
              </table>
              <p style="margin: 24px 0 0; font-size: 13px; color: #9ca3af; text-align: center;">This link expires in {{.ExpiresIn}}.</p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>{{end}}{{template "layout" .}}`

const inviteBodyHTML = `{{define "body"}}
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">
                You have been invited to join <strong>{{.SchoolName}}</strong> as {{.Role}}.
              </p>{{end}}{{define "action"}}Accept invitation{{end}}`

const resetBodyHTML = `{{define "body"}}
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">
                Someone asked to reset the password of your account. If it was you, choose a new one below.
              </p>
              <p style="margin: 0 0 24px; font-size: 14px; color: #6b7280;">If you did not ask for this, you can ignore this email.</p>{{end}}{{define "action"}}Reset password{{end}}`
