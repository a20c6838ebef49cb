package service

import (
	"context"
	"encoding/json"
	"strings"

	"viacrm_backend/internal/events"
	"viacrm_backend/internal/leads/domain"
	"viacrm_backend/internal/leads/repository"
	"viacrm_backend/platform/apperr"

	"github.com/google/uuid"
)

// DecideInput is a manager's resolution of a lead under review.
type DecideInput struct {
	TenantID      uuid.UUID
	LeadID        uuid.UUID
	Decision      domain.Decision
	ReasonID      string
	Justification *string
	ActorID       uuid.UUID
	ActorRole     domain.Role
}

// Decide clears the review flag and records the decision in the lead history,
// atomically. Queue priority is left as is. The reason id is stored verbatim.
func (s *Service) Decide(ctx context.Context, in DecideInput) (domain.LeadEvent, error) {
	if !domain.CanManage(in.ActorRole) {
		return domain.LeadEvent{}, apperr.Forbidden("only owners and managers can decide on reviews")
	}
	if !in.Decision.Valid() {
		return domain.LeadEvent{}, apperr.Validation("invalid decision")
	}
	reasonID := strings.TrimSpace(in.ReasonID)
	if reasonID == "" {
		return domain.LeadEvent{}, apperr.Validation("reasonId is required")
	}

	payload, err := json.Marshal(domain.ManagerDecisionPayload{
		Decision:      in.Decision,
		ReasonID:      reasonID,
		Justification: trimmed(in.Justification),
		ActorID:       in.ActorID,
		ActorRole:     in.ActorRole,
	})
	if err != nil {
		return domain.LeadEvent{}, err
	}

	var ev domain.LeadEvent
	err = s.store.InTx(ctx, func(q repository.Queries) error {
		lead, err := q.GetByID(ctx, in.TenantID, in.LeadID, true)
		if err != nil {
			return err
		}
		lead.NeedsManagerReview = false
		if _, err := q.Update(ctx, lead); err != nil {
			return err
		}
		ev, err = q.AppendEvent(ctx, domain.LeadEvent{
			TenantID: in.TenantID,
			LeadID:   in.LeadID,
			Channel:  string(domain.ChannelManagerDecision),
			Payload:  payload,
		})
		return err
	})
	if err != nil {
		return domain.LeadEvent{}, translate(err)
	}

	s.metrics.ManagerDecision(string(in.Decision))
	s.bus.Publish(ctx, events.ManagerDecisionRecorded{
		BaseEvent: events.NewBaseEvent(),
		TenantID:  in.TenantID,
		LeadID:    in.LeadID,
		EventID:   ev.ID,
		Decision:  string(in.Decision),
		ReasonID:  reasonID,
		ActorID:   in.ActorID,
	})
	return ev, nil
}
