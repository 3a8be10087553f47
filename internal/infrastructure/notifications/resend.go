// Package notifications delivers out-of-band alerts about session milestones
// to the operators' inbox. Delivery is fire and forget: a failed send is
// logged and dropped, never retried and never surfaced to clients.
package notifications

import (
	"fmt"

	"github.com/resendlabs/resend-go"

	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
)

// EmailSink sends notifications through the Resend API.
type EmailSink struct {
	client *resend.Client
	from   string
	to     string
	logger *logging.ChanneledLogger
}

// NewEmailSink creates a sink for the given API key and addresses.
func NewEmailSink(apiKey, from, to string, logger *logging.ChanneledLogger) *EmailSink {
	return &EmailSink{
		client: resend.NewClient(apiKey),
		from:   from,
		to:     to,
		logger: logger,
	}
}

// Notify sends one email asynchronously.
func (s *EmailSink) Notify(subject, body string) {
	go func() {
		params := &resend.SendEmailRequest{
			From:    s.from,
			To:      []string{s.to},
			Subject: subject,
			Text:    body,
		}
		if _, err := s.client.Emails.Send(params); err != nil {
			if s.logger != nil {
				s.logger.Notify().Error("Failed to send notification email", "subject", subject, "error", err)
			}
			return
		}
		if s.logger != nil {
			s.logger.Notify().Debug("Notification email sent", "subject", subject)
		}
	}()
}

// NoopSink discards every notification. Used when no API key is configured.
type NoopSink struct{}

// Notify does nothing.
func (NoopSink) Notify(subject, body string) {}

// Describe returns a human-readable sink description for startup logs.
func Describe(enabled bool, to string) string {
	if !enabled {
		return "disabled"
	}
	return fmt.Sprintf("email to %s", to)
}
