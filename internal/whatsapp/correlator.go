package whatsapp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"viacrm_backend/internal/archive"
	"viacrm_backend/internal/leads/domain"
	"viacrm_backend/internal/leads/service"
	"viacrm_backend/platform/apperr"
	"viacrm_backend/platform/logger"
	"viacrm_backend/platform/metrics"

	"github.com/google/uuid"
)

const (
	archiveSource = "whatsapp"

	inboundIngested = "ingested"
	inboundFailed   = "failed"
	inboundIgnored  = "ignored"
)

// LeadService is the part of the lead service the correlator drives.
type LeadService interface {
	IngestInbound(ctx context.Context, tenantID uuid.UUID, msg service.InboundMessage) (service.IngestResult, error)
	Send(ctx context.Context, tenantID, leadID uuid.UUID, text string) (domain.LeadEvent, error)
}

// ReceiveResult summarizes one webhook delivery.
type ReceiveResult struct {
	Ignored   bool
	Processed int
	Failed    int
	Acked     int
}

// Correlator turns provider webhook deliveries into lead ingestions bound to a
// single configured tenant, then acknowledges each message to the sender.
type Correlator struct {
	leads    LeadService
	tenantID uuid.UUID
	archive  archive.Archiver
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// CorrelatorOption configures a Correlator.
type CorrelatorOption func(*Correlator)

// WithArchive stores every raw delivery before it is processed.
func WithArchive(a archive.Archiver) CorrelatorOption {
	return func(c *Correlator) { c.archive = a }
}

// WithMetrics enables the inbound message counter.
func WithMetrics(m *metrics.Metrics) CorrelatorOption {
	return func(c *Correlator) { c.metrics = m }
}

func NewCorrelator(leads LeadService, tenantID uuid.UUID, log *logger.Logger, opts ...CorrelatorOption) *Correlator {
	c := &Correlator{leads: leads, tenantID: tenantID, log: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
				Contacts []contact        `json:"contacts"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

type contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// AckText is the canned reply sent for every inbound message.
func AckText(text string) string {
	return `Recebi sua mensagem: "` + text + `"`
}

// Receive processes one delivery. Only the first entry and change are read.
// A message that fails to ingest is logged and skipped; acknowledgement
// failures never undo the inbound write.
func (c *Correlator) Receive(ctx context.Context, raw []byte) (ReceiveResult, error) {
	log := c.log.WithContext(ctx)

	if c.tenantID == uuid.Nil {
		return ReceiveResult{}, apperr.Internal("whatsapp default tenant is not configured")
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ReceiveResult{}, apperr.BadRequest("invalid webhook payload")
	}

	if c.archive != nil {
		if key, err := c.archive.Store(ctx, archiveSource, raw); err != nil {
			log.Warn("whatsapp webhook archive failed", slog.String("error", err.Error()))
		} else {
			log.Debug("whatsapp webhook archived", slog.String("object_key", key))
		}
	}

	if len(env.Entry) == 0 || len(env.Entry[0].Changes) == 0 || len(env.Entry[0].Changes[0].Value.Messages) == 0 {
		c.metrics.WhatsAppInbound(inboundIgnored)
		return ReceiveResult{Ignored: true}, nil
	}
	value := env.Entry[0].Changes[0].Value

	var result ReceiveResult
	for _, msg := range value.Messages {
		ingested, err := c.leads.IngestInbound(ctx, c.tenantID, service.InboundMessage{
			From:        msg.From,
			Text:        msg.Text.Body,
			MessageID:   msg.ID,
			ProfileName: profileName(value.Contacts, msg.From),
		})
		if err != nil {
			result.Failed++
			c.metrics.WhatsAppInbound(inboundFailed)
			log.Error("whatsapp inbound message not ingested",
				slog.String("message_id", msg.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.Processed++
		c.metrics.WhatsAppInbound(inboundIngested)

		if _, err := c.leads.Send(ctx, c.tenantID, ingested.Lead.ID, AckText(msg.Text.Body)); err != nil {
			log.Warn("whatsapp acknowledgement failed",
				slog.String("lead_id", ingested.Lead.ID.String()),
				slog.String("message_id", msg.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.Acked++
	}

	return result, nil
}

// profileName prefers the contact whose wa_id matches the sender.
func profileName(contacts []contact, from string) string {
	for _, ct := range contacts {
		if ct.WaID != "" && ct.WaID == from {
			return strings.TrimSpace(ct.Profile.Name)
		}
	}
	if len(contacts) > 0 {
		return strings.TrimSpace(contacts[0].Profile.Name)
	}
	return ""
}
