package mailer

import (
	"context"

	"email-marketing-backend/internal/logger"
)

// LogTransport only logs messages. Used for local development without a relay.
type LogTransport struct {
	from string
}

// NewLogTransport creates a log-only transport
func NewLogTransport(from string) *LogTransport {
	return &LogTransport{from: from}
}

// Send logs msg and reports success
func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	logger.WithContext(ctx).WithFields(map[string]interface{}{
		"to":      logger.RedactEmail(msg.To),
		"from":    senderOrDefault(msg.From, t.from),
		"subject": msg.Subject,
		"bytes":   len(msg.HTML),
	}).Info("Email delivery skipped (log transport)")
	return nil
}
