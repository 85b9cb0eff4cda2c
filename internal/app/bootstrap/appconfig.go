// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds camphub's own configuration. WAFFLE's CoreConfig covers
// ports, TLS, logging and the environment name; everything here is loaded
// by LoadConfig from flags, CAMPHUB_* environment variables or config files.
type AppConfig struct {
	// MongoDB
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Redis is optional. When RedisAddr is set, impersonation grants live
	// in Redis instead of MongoDB.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Credentials
	JWTSecret        string
	JWTIssuer        string
	CredentialTTL    time.Duration
	ImpersonationTTL time.Duration
	SessionName      string // cookie name
	SessionDomain    string // blank means current host

	// Registration tokens
	InviteTTL            time.Duration
	PasswordResetTTL     time.Duration
	SchoolLinkTTL        time.Duration
	TokenCleanupInterval time.Duration

	// Email. SendGrid wins over SMTP; with neither, mail is only logged.
	MailSMTPHost   string
	MailSMTPPort   int
	MailSMTPUser   string
	MailSMTPPass   string
	MailFrom       string
	MailFromName   string
	SendGridAPIKey string

	// BaseURL prefixes links in invite and reset emails.
	BaseURL  string
	SiteName string

	// Audit destinations: all, db, log or off.
	AuditLogAuth  string
	AuditLogAdmin string

	// SuperAdmin bootstrap
	SuperAdminEmail    string
	SuperAdminPassword string
}
