package transport

import (
	"encoding/json"
	"time"

	"viacrm_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Request DTOs
type CreateLeadRequest struct {
	Name   string  `json:"nome" validate:"required,notblank,max=200"`
	Phone  *string `json:"telefone,omitempty" validate:"omitempty,max=40"`
	Email  *string `json:"email,omitempty" validate:"omitempty,email"`
	Origin *string `json:"origem,omitempty" validate:"omitempty,max=60"`
	Note   *string `json:"observacao,omitempty" validate:"omitempty,max=2000"`
}

type UpdateLeadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=NOVO EM_CONTATO QUALIFICADO PROPOSTA FECHADO PERDIDO"`
}

type AssignLeadRequest struct {
	AssignedUserID OptionalUUID `json:"assignedUserId"`
}

type CreateEventRequest struct {
	Channel    string          `json:"channel,omitempty" validate:"omitempty,max=80"`
	PayloadRaw json.RawMessage `json:"payloadRaw,omitempty"`
}

type ManagerDecisionRequest struct {
	Decision      string  `json:"decision" validate:"required,oneof=KEEP_AGENT_REENTRY AI_ROUTE_OTHER_IF_AVAILABLE_AFTER_QUALIFICATION KEEP_CLOSED AI_ROUTE_ANY_AFTER_QUALIFICATION"`
	ReasonID      string  `json:"reasonId" validate:"required,notblank"`
	Justification *string `json:"justification,omitempty" validate:"omitempty,max=2000"`
}

// Response DTOs
type LeadResponse struct {
	ID                 uuid.UUID  `json:"id"`
	TenantID           uuid.UUID  `json:"tenantId"`
	Name               string     `json:"nome"`
	Phone              *string    `json:"telefone"`
	PhoneKey           *string    `json:"telefoneKey"`
	Email              *string    `json:"email"`
	Note               *string    `json:"observacao"`
	Origin             *string    `json:"origem"`
	Status             string     `json:"status"`
	NeedsManagerReview bool       `json:"needsManagerReview"`
	QueuePriority      int        `json:"queuePriority"`
	LastInboundAt      *time.Time `json:"lastInboundAt"`
	AssignedUserID     *uuid.UUID `json:"assignedUserId"`
	BranchID           *uuid.UUID `json:"branchId"`
	CreatedAt          time.Time  `json:"criadoEm"`
	UpdatedAt          time.Time  `json:"atualizadoEm"`
}

type LeadEventResponse struct {
	ID         uuid.UUID       `json:"id"`
	TenantID   uuid.UUID       `json:"tenantId"`
	LeadID     uuid.UUID       `json:"leadId"`
	Channel    string          `json:"channel"`
	IsReentry  bool            `json:"isReentry"`
	PayloadRaw json.RawMessage `json:"payloadRaw"`
	CreatedAt  time.Time       `json:"criadoEm"`
}

type TimelineEventResponse struct {
	LeadEventResponse
	Direction string `json:"direction"`
	Text      string `json:"text,omitempty"`
}

type IngestResponse struct {
	OK     bool         `json:"ok"`
	Result IngestResult `json:"result"`
}

type IngestResult struct {
	Lead      LeadResponse      `json:"lead"`
	Event     LeadEventResponse `json:"event"`
	IsReentry bool              `json:"isReentry"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

func ToLeadResponse(l domain.Lead) LeadResponse {
	return LeadResponse{
		ID:                 l.ID,
		TenantID:           l.TenantID,
		Name:               l.Name,
		Phone:              l.Phone,
		PhoneKey:           l.PhoneKey,
		Email:              l.Email,
		Note:               l.Note,
		Origin:             l.Origin,
		Status:             string(l.Status),
		NeedsManagerReview: l.NeedsManagerReview,
		QueuePriority:      l.QueuePriority,
		LastInboundAt:      l.LastInboundAt,
		AssignedUserID:     l.AssignedUserID,
		BranchID:           l.BranchID,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}
}

func ToLeadResponses(leads []domain.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, ToLeadResponse(l))
	}
	return out
}

func ToLeadEventResponse(ev domain.LeadEvent) LeadEventResponse {
	return LeadEventResponse{
		ID:         ev.ID,
		TenantID:   ev.TenantID,
		LeadID:     ev.LeadID,
		Channel:    ev.Channel,
		IsReentry:  ev.IsReentry,
		PayloadRaw: ev.Payload,
		CreatedAt:  ev.CreatedAt,
	}
}

func ToTimelineResponses(entries []domain.TimelineEntry) []TimelineEventResponse {
	out := make([]TimelineEventResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, TimelineEventResponse{
			LeadEventResponse: ToLeadEventResponse(e.Event),
			Direction:         string(e.Direction),
			Text:              e.Text,
		})
	}
	return out
}

func ToIngestResponse(lead domain.Lead, ev domain.LeadEvent, reentry bool) IngestResponse {
	return IngestResponse{
		OK: true,
		Result: IngestResult{
			Lead:      ToLeadResponse(lead),
			Event:     ToLeadEventResponse(ev),
			IsReentry: reentry,
		},
	}
}
