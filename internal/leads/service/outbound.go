package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"viacrm_backend/internal/events"
	"viacrm_backend/internal/leads/domain"
	"viacrm_backend/platform/apperr"
	"viacrm_backend/platform/phone"

	"github.com/google/uuid"
)

const (
	sendResultSent         = "sent"
	sendResultTimeout      = "timeout"
	sendResultRejected     = "rejected"
	sendResultInvalidPhone = "invalid_phone"
)

type outboundPayload struct {
	To               string          `json:"to"`
	Text             string          `json:"text"`
	ProviderResponse json.RawMessage `json:"providerResponse,omitempty"`
}

// Send delivers text to the lead's stored phone and, only on success, appends a
// "whatsapp.out" event. The provider call is bounded by the send timeout; a
// deadline is reported as Timeout and any other failure as Upstream.
func (s *Service) Send(ctx context.Context, tenantID, leadID uuid.UUID, text string) (domain.LeadEvent, error) {
	lead, err := s.store.GetByID(ctx, tenantID, leadID, false)
	if err != nil {
		return domain.LeadEvent{}, translate(err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.LeadEvent{}, apperr.Validation("message text is required")
	}
	if lead.Phone == nil || len(phone.Digits(*lead.Phone)) < phone.MinSendableDigits {
		s.metrics.WhatsAppOutbound(sendResultInvalidPhone)
		return domain.LeadEvent{}, apperr.InvalidPhone("lead has no usable phone number")
	}
	to := phone.International(*lead.Phone)

	if s.sender == nil {
		s.metrics.WhatsAppOutbound(sendResultRejected)
		return domain.LeadEvent{}, apperr.Upstream("whatsapp sender is not configured")
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	response, err := s.sender.SendText(sendCtx, to, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			s.metrics.WhatsAppOutbound(sendResultTimeout)
			return domain.LeadEvent{}, apperr.Timeout(fmt.Sprintf("whatsapp send timed out after %s", s.sendTimeout))
		}
		s.metrics.WhatsAppOutbound(sendResultRejected)
		return domain.LeadEvent{}, apperr.Wrap(apperr.KindUpstream, err.Error(), err)
	}

	payload, err := json.Marshal(outboundPayload{To: to, Text: text, ProviderResponse: validJSON(response)})
	if err != nil {
		return domain.LeadEvent{}, err
	}

	ev, err := s.store.AppendEvent(ctx, domain.LeadEvent{
		TenantID: tenantID,
		LeadID:   leadID,
		Channel:  string(domain.ChannelWhatsAppOut),
		Payload:  payload,
	})
	if err != nil {
		s.log.WithContext(ctx).Error("whatsapp message sent but not recorded",
			slog.String("lead_id", leadID.String()),
			slog.String("error", err.Error()),
		)
		return domain.LeadEvent{}, err
	}

	s.metrics.WhatsAppOutbound(sendResultSent)
	s.bus.Publish(ctx, events.WhatsAppMessageSent{
		BaseEvent: events.NewBaseEvent(),
		TenantID:  tenantID,
		LeadID:    leadID,
		EventID:   ev.ID,
		To:        to,
	})
	return ev, nil
}

func validJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return raw
}
