// Package notification reacts to lead intake events with manager alerts.
// Domain modules publish events; this module decides whether and how the
// alert leaves the process (asynq task or direct e-mail).
package notification

import (
	"context"
	"time"

	"viacrm_backend/internal/email"
	"viacrm_backend/internal/events"
	"viacrm_backend/internal/scheduler"
	"viacrm_backend/platform/logger"
)

// Module subscribes to lead events and fans reentries out to managers.
type Module struct {
	notifier scheduler.ReentryNotifier
	mailer   *Mailer
	log      *logger.Logger
}

type Option func(*Module)

// WithNotifier enqueues reentry alerts instead of sending them inline.
func WithNotifier(n scheduler.ReentryNotifier) Option {
	return func(m *Module) { m.notifier = n }
}

// WithMailer sends reentry alerts inline when no notifier is configured.
func WithMailer(mailer *Mailer) Option {
	return func(m *Module) { m.mailer = mailer }
}

func New(log *logger.Logger, opts ...Option) *Module {
	m := &Module{log: log}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterHandlers subscribes to lead intake events on bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadIngested{}.EventName(), events.HandlerFunc(m.Handle))
	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadIngested:
		return m.handleLeadIngested(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleLeadIngested(ctx context.Context, e events.LeadIngested) error {
	if !e.IsReentry {
		return nil
	}

	payload := scheduler.ReentryNotifyPayload{
		TenantID:   e.TenantID.String(),
		LeadID:     e.LeadID.String(),
		EventID:    e.EventID.String(),
		LeadName:   e.LeadName,
		Channel:    e.Channel,
		OccurredAt: e.OccurredAt().UTC().Format(time.RFC3339),
	}

	if m.notifier != nil {
		if err := m.notifier.EnqueueReentryNotify(ctx, payload); err != nil {
			m.log.Error("failed to enqueue reentry notification", "lead_id", payload.LeadID, "error", err)
			return err
		}
		return nil
	}
	if m.mailer != nil {
		return m.mailer.HandleReentry(ctx, payload)
	}
	return nil
}

// Mailer delivers reentry alerts by e-mail. It is the asynq task handler in
// the scheduler process and the inline fallback in the API process.
type Mailer struct {
	sender email.Sender
	to     string
	log    *logger.Logger
}

func NewMailer(sender email.Sender, to string, log *logger.Logger) *Mailer {
	return &Mailer{sender: sender, to: to, log: log}
}

func (m *Mailer) HandleReentry(ctx context.Context, payload scheduler.ReentryNotifyPayload) error {
	if m == nil || m.sender == nil || m.to == "" {
		return nil
	}

	alert := email.ReentryAlert{
		LeadName: payload.LeadName,
		LeadID:   payload.LeadID,
		Channel:  payload.Channel,
	}
	if payload.OccurredAt != "" {
		if at, err := time.Parse(time.RFC3339, payload.OccurredAt); err == nil {
			alert.ReceivedAt = at
		}
	}

	if err := m.sender.SendReentryAlert(ctx, m.to, alert); err != nil {
		m.log.Error("failed to send reentry alert", "lead_id", payload.LeadID, "error", err)
		return err
	}
	m.log.Info("reentry alert sent", "lead_id", payload.LeadID, "channel", payload.Channel)
	return nil
}
