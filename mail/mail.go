// Package mail delivers activation and password-reset messages over
// SMTP. Delivery is best effort by contract: methods report success as a
// bool and never fail the caller's unit of work.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gomail "gopkg.in/gomail.v2"
)

// Config holds the SMTP endpoint and the base URL links are built
// against. An empty SMTPHost leaves the mailer unconfigured; every send
// then reports failure, which the engine degrades around.
type Config struct {
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	From     string
	// BaseURL is the externally reachable prefix for activation and
	// reset links, e.g. "https://example.com".
	BaseURL string
}

// SMTPMailer implements the engine's Mailer contract over gomail.
type SMTPMailer struct {
	cfg    Config
	logger *slog.Logger
}

func NewSMTPMailer(cfg Config, logger *slog.Logger) *SMTPMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPMailer{cfg: cfg, logger: logger}
}

func (m *SMTPMailer) configured() bool {
	return m.cfg.SMTPHost != "" && m.cfg.From != ""
}

// SendActivationMessage mails the account-activation link.
func (m *SMTPMailer) SendActivationMessage(ctx context.Context, email, token string) bool {
	link := fmt.Sprintf("%s/activate/%s", strings.TrimRight(m.cfg.BaseURL, "/"), token)
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Confirm your account</h2>
    <p>Follow the link below to activate your account:</p>
    <p><a href="%s">%s</a></p>
    <p>The link is valid for 24 hours. If you did not register, ignore this message.</p>
  </div>
</body>
</html>`, link, link)

	return m.send(ctx, email, "Activate your account", body)
}

// SendPasswordResetMessage mails the password-reset link.
func (m *SMTPMailer) SendPasswordResetMessage(ctx context.Context, email, token string) bool {
	link := fmt.Sprintf("%s/reset/%s", strings.TrimRight(m.cfg.BaseURL, "/"), token)
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Password reset</h2>
    <p>Follow the link below to choose a new password:</p>
    <p><a href="%s">%s</a></p>
    <p>The link is valid for 1 hour. If you did not request a reset, ignore this message.</p>
  </div>
</body>
</html>`, link, link)

	return m.send(ctx, email, "Reset your password", body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, htmlBody string) bool {
	if !m.configured() {
		m.logger.Warn("mailer not configured, skipping send", slog.String("to", to))
		return false
	}
	if strings.TrimSpace(to) == "" {
		m.logger.Warn("mail recipient empty, skipping send")
		return false
	}
	if err := ctx.Err(); err != nil {
		m.logger.Warn("mail send canceled", slog.String("to", to), slog.Any("error", err))
		return false
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(m.cfg.SMTPHost, m.cfg.SMTPPort, m.cfg.SMTPUser, m.cfg.SMTPPass)
	if err := d.DialAndSend(msg); err != nil {
		m.logger.Warn("mail send failed", slog.String("to", to), slog.Any("error", err))
		return false
	}

	m.logger.Info("mail sent", slog.String("to", to), slog.String("subject", subject))
	return true
}
