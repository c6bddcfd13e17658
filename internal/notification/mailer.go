// Package notification sends the service's e-mails over SMTP. Bodies are
// written in Markdown, rendered to sanitised HTML and sent with a plain-text
// alternative.
package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/gomail.v2"

	"github.com/iliyamo/video-access/internal/config"
)

var ErrNotConfigured = errors.New("mail transport not configured")

type Sender struct {
	cfg     config.MailConfig
	deliver func(*gomail.Message) error
	md      goldmark.Markdown
	policy  *bluemonday.Policy
	log     *slog.Logger
}

func NewSender(cfg config.MailConfig, log *slog.Logger) *Sender {
	s := &Sender{
		cfg: cfg,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		policy: bluemonday.UGCPolicy(),
		log:    log.With("component", "mailer"),
	}
	if cfg.Configured() {
		d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
		d.SSL = cfg.Secure
		d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
		s.deliver = func(m *gomail.Message) error { return d.DialAndSend(m) }
	}
	return s
}

// Configured reports whether a transport is available.
func (s *Sender) Configured() bool { return s.deliver != nil }

// SendLoginToken delivers a one-time login code. The caller decides what a
// failure means.
func (s *Sender) SendLoginToken(ctx context.Context, to, code string) error {
	body := fmt.Sprintf("## Your login code\n\nUse this code to sign in:\n\n# %s\n\n"+
		"The code expires in 10 minutes and works once. If you did not ask for it you can ignore this e-mail.\n", code)
	return s.send(ctx, to, "Your login code", body)
}

// SendWelcome greets a user after the first successful login.
func (s *Sender) SendWelcome(ctx context.Context, to, firstName string) error {
	name := firstName
	if name == "" {
		name = "there"
	}
	body := fmt.Sprintf("## Welcome, %s!\n\nYour account is ready. Videos shared with you will show up in your library.\n", name)
	return s.send(ctx, to, "Welcome to "+s.cfg.FromName, body)
}

// SendNotification sends a free-form Markdown message.
func (s *Sender) SendNotification(ctx context.Context, to, subject, markdown string) error {
	return s.send(ctx, to, subject, markdown)
}

// Render converts Markdown to sanitised HTML.
func (s *Sender) Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return s.policy.Sanitize(buf.String()), nil
}

func (s *Sender) send(ctx context.Context, to, subject, markdown string) error {
	if s.deliver == nil {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	htmlBody, err := s.Render(markdown)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.cfg.From, s.cfg.FromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", markdown)
	m.AddAlternative("text/html", htmlBody)

	if err := s.deliver(m); err != nil {
		s.log.Warn("send failed", "to", to, "subject", subject, "error", err)
		return fmt.Errorf("send mail: %w", err)
	}
	s.log.Info("mail sent", "to", to, "subject", subject)
	return nil
}
