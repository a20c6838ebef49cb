// Package domain holds the lead model together with the pure rules of the
// intake pipeline: routing, merge policy, payload extraction and timeline
// classification. Nothing here performs I/O.
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultLeadName is stored when an inbound contact carries no display name.
const DefaultLeadName = "Sem nome"

// WhatsAppLeadName is the display name for a lead first seen on WhatsApp without a profile name.
const WhatsAppLeadName = "Lead WhatsApp"

// LeadStatus is the sales stage of a lead.
type LeadStatus string

const (
	StatusNew        LeadStatus = "NOVO"
	StatusContacting LeadStatus = "EM_CONTATO"
	StatusQualified  LeadStatus = "QUALIFICADO"
	StatusProposal   LeadStatus = "PROPOSTA"
	StatusClosed     LeadStatus = "FECHADO"
	StatusLost       LeadStatus = "PERDIDO"
)

var validStatuses = map[LeadStatus]struct{}{
	StatusNew: {}, StatusContacting: {}, StatusQualified: {},
	StatusProposal: {}, StatusClosed: {}, StatusLost: {},
}

// ParseLeadStatus accepts a status in any letter case.
func ParseLeadStatus(raw string) (LeadStatus, bool) {
	status := LeadStatus(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := validStatuses[status]
	return status, ok
}

// Role is the caller's capability level inside a tenant.
type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleManager Role = "MANAGER"
	RoleAgent   Role = "AGENT"
)

// ManagerRoles are allowed to clear manager review and edit the reasons catalog.
var ManagerRoles = []string{string(RoleOwner), string(RoleManager)}

// CanManage reports whether role may act on the manager queue.
func CanManage(role Role) bool {
	return role == RoleOwner || role == RoleManager
}

// Lead is a deduplicated contact within a tenant.
type Lead struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	Name               string
	Phone              *string
	PhoneKey           *string
	Email              *string
	Note               *string
	Origin             *string
	NeedsManagerReview bool
	QueuePriority      int
	LastInboundAt      *time.Time
	AssignedUserID     *uuid.UUID
	BranchID           *uuid.UUID
	Status             LeadStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// LeadEvent is an immutable entry of a lead's history. Payload is stored verbatim.
type LeadEvent struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	LeadID    uuid.UUID
	Channel   string
	IsReentry bool
	Payload   json.RawMessage
	CreatedAt time.Time
}

// DecisionReason is a tenant-configurable label offered to managers when
// resolving a review.
type DecisionReason struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Label     string
	Active    bool
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Decision is the closed set of outcomes a manager can record.
type Decision string

const (
	DecisionKeepAgentReentry      Decision = "KEEP_AGENT_REENTRY"
	DecisionAIRouteOtherIfAvail   Decision = "AI_ROUTE_OTHER_IF_AVAILABLE_AFTER_QUALIFICATION"
	DecisionKeepClosed            Decision = "KEEP_CLOSED"
	DecisionAIRouteAnyAfterQualif Decision = "AI_ROUTE_ANY_AFTER_QUALIFICATION"
)

// Valid reports whether d belongs to the enumeration.
func (d Decision) Valid() bool {
	switch d {
	case DecisionKeepAgentReentry, DecisionAIRouteOtherIfAvail, DecisionKeepClosed, DecisionAIRouteAnyAfterQualif:
		return true
	}
	return false
}

// ManagerDecisionPayload is the audit record appended when a review is resolved.
type ManagerDecisionPayload struct {
	Decision      Decision  `json:"decision"`
	ReasonID      string    `json:"reasonId"`
	Justification *string   `json:"justification,omitempty"`
	ActorID       uuid.UUID `json:"actorId"`
	ActorRole     Role      `json:"actorRole"`
}
