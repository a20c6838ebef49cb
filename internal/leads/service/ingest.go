package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"viacrm_backend/internal/events"
	"viacrm_backend/internal/leads/domain"
	"viacrm_backend/internal/leads/repository"
	"viacrm_backend/platform/apperr"
	"viacrm_backend/platform/phone"

	"github.com/google/uuid"
)

// IngestResult is the outcome of one inbound contact.
type IngestResult struct {
	Lead      domain.Lead
	Event     domain.LeadEvent
	IsReentry bool
}

// InboundMessage is a single message pushed by the messaging provider.
type InboundMessage struct {
	From        string
	Text        string
	MessageID   string
	ProfileName string
}

type ingestCommand struct {
	tenantID     uuid.UUID
	eventChannel string
	incoming     domain.Incoming
	fallbackName string
	branch       *uuid.UUID
	payload      json.RawMessage
}

// Ingest deduplicates an inbound contact by phone key, creates or merges the
// lead, routes it and appends the raw payload to its history. Lead write and
// event append commit together. A lost race on the phone key is retried.
func (s *Service) Ingest(ctx context.Context, tenantID uuid.UUID, channel domain.Channel, payload json.RawMessage) (IngestResult, error) {
	if tenantID == uuid.Nil {
		return IngestResult{}, apperr.Validation(msgTenantNeeded)
	}
	if !domain.IsIngestChannel(channel) {
		return IngestResult{}, apperr.Validation(fmt.Sprintf("unsupported channel %q", channel))
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	if !json.Valid(payload) {
		return IngestResult{}, apperr.Validation("payload must be valid JSON")
	}

	contact := domain.ExtractContact(channel, domain.DecodePayload(payload))
	origin := string(channel)

	return s.ingest(ctx, ingestCommand{
		tenantID:     tenantID,
		eventChannel: string(channel),
		incoming: domain.Incoming{
			Name:     contact.Name,
			Origin:   &origin,
			Phone:    contact.Phone,
			PhoneKey: phone.KeyPtr(contact.Phone),
			Email:    contact.Email,
			BranchID: contact.BranchID,
		},
		fallbackName: domain.DefaultLeadName,
		branch:       s.triageBranch,
		payload:      payload,
	})
}

// IngestInbound records a provider message for tenantID. Only the profile name
// and the sender number are taken from the message; the event is "whatsapp.in".
func (s *Service) IngestInbound(ctx context.Context, tenantID uuid.UUID, msg InboundMessage) (IngestResult, error) {
	if tenantID == uuid.Nil {
		return IngestResult{}, apperr.Validation(msgTenantNeeded)
	}
	digits := phone.Digits(msg.From)
	if digits == "" {
		return IngestResult{}, apperr.Validation("sender phone is required")
	}

	payload, err := json.Marshal(map[string]string{
		"from":      digits,
		"text":      msg.Text,
		"messageId": msg.MessageID,
	})
	if err != nil {
		return IngestResult{}, err
	}

	origin := string(domain.ChannelWhatsApp)
	return s.ingest(ctx, ingestCommand{
		tenantID:     tenantID,
		eventChannel: string(domain.ChannelWhatsAppIn),
		incoming: domain.Incoming{
			Name:     strings.TrimSpace(msg.ProfileName),
			Origin:   &origin,
			Phone:    &digits,
			PhoneKey: phone.Key(digits),
		},
		fallbackName: domain.WhatsAppLeadName,
		payload:      payload,
	})
}

func (s *Service) ingest(ctx context.Context, cmd ingestCommand) (IngestResult, error) {
	for attempt := 1; attempt <= maxIngestAttempts; attempt++ {
		result, err := s.ingestOnce(ctx, cmd)
		if errors.Is(err, repository.ErrConflict) {
			s.metrics.IngestConflict()
			s.log.WithContext(ctx).Warn("ingest lost phone key race",
				slog.String("tenant_id", cmd.tenantID.String()),
				slog.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return IngestResult{}, err
		}
		s.afterIngest(ctx, cmd, result)
		return result, nil
	}
	return IngestResult{}, apperr.Conflict("concurrent ingestion for the same contact, retry later")
}

func (s *Service) ingestOnce(ctx context.Context, cmd ingestCommand) (IngestResult, error) {
	var result IngestResult
	err := s.store.InTx(ctx, func(q repository.Queries) error {
		existing, err := s.resolver.Resolve(ctx, q, cmd.tenantID, cmd.incoming.PhoneKey)
		if err != nil {
			return err
		}

		now := s.now()
		var lead domain.Lead
		if existing == nil {
			lead, err = q.Create(ctx, s.newLead(cmd, now))
		} else {
			merged := *existing
			s.policy.Apply(&merged, cmd.incoming)
			domain.Route(true).Apply(&merged)
			merged.LastInboundAt = &now
			lead, err = q.Update(ctx, merged)
		}
		if err != nil {
			return err
		}

		ev, err := q.AppendEvent(ctx, domain.LeadEvent{
			TenantID:  cmd.tenantID,
			LeadID:    lead.ID,
			Channel:   cmd.eventChannel,
			IsReentry: existing != nil,
			Payload:   cmd.payload,
		})
		if err != nil {
			return err
		}

		result = IngestResult{Lead: lead, Event: ev, IsReentry: existing != nil}
		return nil
	})
	return result, err
}

func (s *Service) newLead(cmd ingestCommand, now time.Time) domain.Lead {
	in := cmd.incoming
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = cmd.fallbackName
	}
	branch := in.BranchID
	if branch == nil {
		branch = cmd.branch
	}

	lead := domain.Lead{
		TenantID:      cmd.tenantID,
		Name:          name,
		Phone:         trimmed(in.Phone),
		PhoneKey:      in.PhoneKey,
		Email:         trimmed(in.Email),
		Origin:        in.Origin,
		LastInboundAt: &now,
		BranchID:      branch,
		Status:        domain.StatusNew,
	}
	domain.Route(false).Apply(&lead)
	return lead
}

func (s *Service) afterIngest(ctx context.Context, cmd ingestCommand, result IngestResult) {
	s.metrics.LeadIngested(cmd.eventChannel, result.IsReentry)
	s.log.WithContext(ctx).LeadIngested(cmd.tenantID.String(), result.Lead.ID.String(), cmd.eventChannel, result.IsReentry)

	s.bus.Publish(ctx, events.LeadIngested{
		BaseEvent: events.NewBaseEvent(),
		TenantID:  cmd.tenantID,
		LeadID:    result.Lead.ID,
		EventID:   result.Event.ID,
		Channel:   cmd.eventChannel,
		IsReentry: result.IsReentry,
		LeadName:  result.Lead.Name,
		BranchID:  result.Lead.BranchID,
	})
}
