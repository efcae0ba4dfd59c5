package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"time"
)

// Notifier delivers auth-related emails. Delivery is best effort: the
// orchestrator logs a warning on failure and the parent operation proceeds.
type Notifier interface {
	SendResetPassword(ctx context.Context, to, token string) error
	SendNewAdminCredentials(ctx context.Context, to, name, password string) error
}

const resetPasswordTpl = `
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <h2>Reset Password - School ERP</h2>
  <p>Hello {{.To}},</p>
  <p>To reset your password, open the link below:</p>
  <p><a href="{{.ResetURL}}">{{.ResetURL}}</a></p>
  <p>If you did not request a password reset, ignore this email.</p>
</body>
</html>
`

const newAdminTpl = `
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <h2>Welcome to School ERP</h2>
  <p>Hello {{.Name}},</p>
  <p>Your admin account has been created:</p>
  <p><strong>Email:</strong> {{.To}}</p>
  <p><strong>Password:</strong> {{.Password}}</p>
  <p>Please log in and change your password immediately.</p>
</body>
</html>
`

// SMTPNotifier sends mail over SMTP with bounded retries.
type SMTPNotifier struct {
	addr     string
	from     string
	auth     smtp.Auth
	baseURL  string
	logger   *slog.Logger
	attempts int

	reset    *template.Template
	newAdmin *template.Template
}

// NewSMTPNotifier creates an SMTPNotifier. baseURL is the public URL the
// reset link points at.
func NewSMTPNotifier(host string, port int, username, password, from, baseURL string, logger *slog.Logger) *SMTPNotifier {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPNotifier{
		addr:     fmt.Sprintf("%s:%d", host, port),
		from:     from,
		auth:     auth,
		baseURL:  baseURL,
		logger:   logger,
		attempts: 3,
		reset:    template.Must(template.New("reset").Parse(resetPasswordTpl)),
		newAdmin: template.Must(template.New("newAdmin").Parse(newAdminTpl)),
	}
}

// SendResetPassword emails a reset link carrying the token.
func (n *SMTPNotifier) SendResetPassword(ctx context.Context, to, token string) error {
	var body bytes.Buffer
	err := n.reset.Execute(&body, map[string]string{
		"To":       to,
		"ResetURL": fmt.Sprintf("%s/reset-password?token=%s", n.baseURL, token),
	})
	if err != nil {
		return fmt.Errorf("render reset email: %w", err)
	}
	return n.send(ctx, to, "Reset Password - School ERP", body.String())
}

// SendNewAdminCredentials emails initial credentials to a created admin.
func (n *SMTPNotifier) SendNewAdminCredentials(ctx context.Context, to, name, password string) error {
	var body bytes.Buffer
	err := n.newAdmin.Execute(&body, map[string]string{
		"To":       to,
		"Name":     name,
		"Password": password,
	})
	if err != nil {
		return fmt.Errorf("render new admin email: %w", err)
	}
	return n.send(ctx, to, "Welcome to School ERP - Admin Account Created", body.String())
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject, html string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		n.from, to, subject, html)

	var lastErr error
	for attempt := 1; attempt <= n.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = smtp.SendMail(n.addr, n.auth, n.from, []string{to}, []byte(msg))
		if lastErr == nil {
			return nil
		}
		n.logger.Warn("email send failed", "to", to, "attempt", attempt, "error", lastErr)
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return fmt.Errorf("send email after %d attempts: %w", n.attempts, lastErr)
}

// NopNotifier drops all mail. Used in tests and when SMTP is unconfigured.
type NopNotifier struct{}

func (NopNotifier) SendResetPassword(context.Context, string, string) error { return nil }

func (NopNotifier) SendNewAdminCredentials(context.Context, string, string, string) error {
	return nil
}
