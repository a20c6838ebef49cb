// Package email renders and delivers transactional e-mail.
package email

import (
	"context"
	"time"

	"viacrm_backend/platform/config"
)

// ReentryAlert describes a known contact that came back through an intake channel.
type ReentryAlert struct {
	LeadName   string
	LeadID     string
	Channel    string
	ReceivedAt time.Time
	LeadURL    string
}

// Sender delivers the e-mails the CRM sends.
type Sender interface {
	SendReentryAlert(ctx context.Context, toEmail string, alert ReentryAlert) error
}

// NoopSender drops every e-mail. Used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendReentryAlert(context.Context, string, ReentryAlert) error {
	return nil
}

// NewSender returns an SMTP sender when SMTP is configured, otherwise a NoopSender.
func NewSender(cfg config.SMTPConfig) Sender {
	if !cfg.IsEmailEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	)
}
