// Package mailer sends the account verification e-mail.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/watchmenow/watchmenow-be/internal/config"
	"github.com/watchmenow/watchmenow-be/internal/models"
	"github.com/wneessen/go-mail"
)

const (
	verificationSubject = "Confirm your WatchMeNow account"
	smtpTimeout         = 15 * time.Second
)

// Sender delivers the verification link to a freshly registered user.
type Sender interface {
	SendVerification(ctx context.Context, user models.User, link string) error
}

// New returns an SMTP sender when SMTP_HOST is configured and a log-only
// sender otherwise.
func New(cfg *config.Config) (Sender, error) {
	if cfg.SMTPHost == "" {
		return LogSender{}, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTimeout(smtpTimeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.MailFrom}, nil
}

// LogSender writes the link to the log instead of mailing it. Used in development.
type LogSender struct{}

// SendVerification logs the verification link.
func (LogSender) SendVerification(_ context.Context, user models.User, link string) error {
	log.Info().Str("email", user.Email).Str("link", link).Msg("Verification e-mail (not sent, SMTP disabled)")
	return nil
}

// SMTPSender sends mail through a relay.
type SMTPSender struct {
	client *mail.Client
	from   string
}

// SendVerification mails the verification link. The dial and the SMTP
// exchange stop when ctx ends.
func (s *SMTPSender) SendVerification(ctx context.Context, user models.User, link string) error {
	msg, err := BuildVerificationMessage(s.from, user, link)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send verification e-mail: %w", err)
	}
	return nil
}

// BuildVerificationMessage renders the verification e-mail.
func BuildVerificationMessage(from string, user models.User, link string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", from, err)
	}
	if err := msg.To(user.Email); err != nil {
		return nil, fmt.Errorf("invalid recipient address %q: %w", user.Email, err)
	}
	msg.Subject(verificationSubject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Hello %s,\r\n\r\nPlease confirm your e-mail address by opening the link below:\r\n\r\n%s\r\n",
		user.Name, link))
	return msg, nil
}
