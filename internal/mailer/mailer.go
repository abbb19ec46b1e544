// Package mailer delivers composed messages through a pluggable transport.
package mailer

import (
	"context"
	"fmt"

	"email-marketing-backend/internal/config"
	apperrors "email-marketing-backend/internal/errors"
)

// Message is one outbound email with an HTML body
type Message struct {
	To      string
	From    string
	ReplyTo string
	Subject string
	HTML    string
}

// Transport sends a single message. Implementations must be safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// TransportFunc adapts a function to Transport
type TransportFunc func(ctx context.Context, msg Message) error

// Send calls f(ctx, msg)
func (f TransportFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

const textFallback = "This message contains HTML. Please view in an HTML-capable client."

// New selects the transport named by MAIL_PROVIDER
func New(ctx context.Context, cfg *config.Config) (Transport, error) {
	switch cfg.MailProvider {
	case "smtp", "":
		return NewSMTPTransport(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			UseTLS:   cfg.SMTPUseTLS,
			From:     cfg.SMTPFromEmail,
			Timeout:  cfg.SMTPTimeout(),
		}), nil
	case "ses":
		return NewSESTransport(ctx, SESConfig{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			From:            cfg.SMTPFromEmail,
		})
	case "log":
		return NewLogTransport(cfg.SMTPFromEmail), nil
	}
	return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownMailer, cfg.MailProvider)
}

func senderOrDefault(from, fallback string) string {
	if from != "" {
		return from
	}
	return fallback
}
