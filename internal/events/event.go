// Package events defines the lead intake domain events. The bus itself lives
// in platform/events; its types are aliased here so modules import one package.
package events

import (
	"viacrm_backend/platform/events"
	"viacrm_backend/platform/logger"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus returns the process-local bus used by cmd/api.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Lead Intake Events
// =============================================================================

// LeadIngested is published after an inbound contact has been committed.
type LeadIngested struct {
	BaseEvent
	TenantID  uuid.UUID  `json:"tenantId"`
	LeadID    uuid.UUID  `json:"leadId"`
	EventID   uuid.UUID  `json:"eventId"`
	Channel   string     `json:"channel"`
	IsReentry bool       `json:"isReentry"`
	LeadName  string     `json:"leadName"`
	BranchID  *uuid.UUID `json:"branchId,omitempty"`
}

func (e LeadIngested) EventName() string { return "leads.lead.ingested" }

// ManagerDecisionRecorded is published after a manager cleared a review.
// Downstream routing consumers act on Decision; this service only records it.
type ManagerDecisionRecorded struct {
	BaseEvent
	TenantID uuid.UUID `json:"tenantId"`
	LeadID   uuid.UUID `json:"leadId"`
	EventID  uuid.UUID `json:"eventId"`
	Decision string    `json:"decision"`
	ReasonID string    `json:"reasonId"`
	ActorID  uuid.UUID `json:"actorId"`
}

func (e ManagerDecisionRecorded) EventName() string { return "leads.manager_decision.recorded" }

// WhatsAppMessageSent is published after an outbound message was accepted by the provider.
type WhatsAppMessageSent struct {
	BaseEvent
	TenantID uuid.UUID `json:"tenantId"`
	LeadID   uuid.UUID `json:"leadId"`
	EventID  uuid.UUID `json:"eventId"`
	To       string    `json:"to"`
}

func (e WhatsAppMessageSent) EventName() string { return "whatsapp.message.sent" }
