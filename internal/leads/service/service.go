// Package service implements the lead intake pipeline: identity resolution,
// ingestion with merge, manager decisions and outbound messaging, plus the
// CRM reads and edits around them.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"viacrm_backend/internal/events"
	"viacrm_backend/internal/leads/domain"
	"viacrm_backend/internal/leads/repository"
	"viacrm_backend/platform/apperr"
	"viacrm_backend/platform/logger"
	"viacrm_backend/platform/metrics"
	"viacrm_backend/platform/phone"

	"github.com/google/uuid"
)

const (
	// DefaultSendTimeout bounds a single outbound provider call.
	DefaultSendTimeout = 15 * time.Second

	maxIngestAttempts = 3

	msgLeadNotFound = "lead not found"
	msgTenantNeeded = "tenant is required"
)

// Sender delivers a text message to a digits-only international number and
// returns the provider's raw response.
type Sender interface {
	SendText(ctx context.Context, to, body string) (json.RawMessage, error)
}

// Service coordinates the lead store, the outbound sender and the event bus.
type Service struct {
	store        repository.Store
	resolver     *Resolver
	sender       Sender
	bus          events.Bus
	metrics      *metrics.Metrics
	log          *logger.Logger
	policy       domain.MergePolicy
	triageBranch *uuid.UUID
	sendTimeout  time.Duration
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSender sets the outbound transport. Without one, sends fail as upstream rejections.
func WithSender(sender Sender) Option {
	return func(s *Service) { s.sender = sender }
}

// WithMetrics enables Prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTriageBranch sets the branch given to new leads that arrive without one.
func WithTriageBranch(id *uuid.UUID) Option {
	return func(s *Service) { s.triageBranch = id }
}

// WithMergePolicy replaces DefaultMergePolicy.
func WithMergePolicy(policy domain.MergePolicy) Option {
	return func(s *Service) { s.policy = policy }
}

// WithSendTimeout overrides DefaultSendTimeout.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Service) { s.sendTimeout = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store repository.Store, bus events.Bus, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		resolver:    NewResolver(),
		bus:         bus,
		log:         log,
		policy:      domain.DefaultMergePolicy,
		sendTimeout: DefaultSendTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput is a lead entered by hand in the CRM.
type CreateInput struct {
	Name   string
	Phone  *string
	Email  *string
	Origin *string
	Note   *string
}

// Create stores a manually entered lead. It is placed like a new inbound contact
// and fails with Conflict when the phone already belongs to a lead.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, in CreateInput) (domain.Lead, error) {
	if tenantID == uuid.Nil {
		return domain.Lead{}, apperr.Validation(msgTenantNeeded)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Lead{}, apperr.Validation("name is required")
	}
	origin := "crm"
	if in.Origin != nil && strings.TrimSpace(*in.Origin) != "" {
		origin = strings.TrimSpace(*in.Origin)
	}

	lead := domain.Lead{
		TenantID: tenantID,
		Name:     name,
		Phone:    trimmed(in.Phone),
		PhoneKey: phone.KeyPtr(in.Phone),
		Email:    trimmed(in.Email),
		Note:     trimmed(in.Note),
		Origin:   &origin,
		Status:   domain.StatusNew,
	}
	domain.Route(false).Apply(&lead)

	created, err := s.store.Create(ctx, lead)
	if errors.Is(err, repository.ErrConflict) {
		return domain.Lead{}, apperr.Conflict("a lead with this phone already exists")
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return created, nil
}

// Get returns a lead of the tenant.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (domain.Lead, error) {
	lead, err := s.store.GetByID(ctx, tenantID, id, false)
	if err != nil {
		return domain.Lead{}, translate(err)
	}
	return lead, nil
}

// List returns the tenant's leads, optionally filtered by status, newest first.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, status *domain.LeadStatus) ([]domain.Lead, error) {
	return s.store.List(ctx, repository.ListParams{TenantID: tenantID, Status: status})
}

// MyLeads returns leads assigned to userID.
func (s *Service) MyLeads(ctx context.Context, tenantID, userID uuid.UUID, status *domain.LeadStatus) ([]domain.Lead, error) {
	return s.store.List(ctx, repository.ListParams{TenantID: tenantID, AssignedUserID: &userID, Status: status})
}

// BranchLeads returns leads of a branch, or of every branch when branchID is nil.
// Agents may not browse branches.
func (s *Service) BranchLeads(ctx context.Context, tenantID uuid.UUID, role domain.Role, branchID *uuid.UUID, status *domain.LeadStatus) ([]domain.Lead, error) {
	if role == domain.RoleAgent {
		return nil, apperr.Forbidden("agents cannot list branch leads")
	}
	return s.store.List(ctx, repository.ListParams{TenantID: tenantID, BranchID: branchID, Status: status})
}

// ManagerQueue returns the leads awaiting manager review, most recent inbound first.
func (s *Service) ManagerQueue(ctx context.Context, tenantID uuid.UUID) ([]domain.Lead, error) {
	return s.store.ManagerQueue(ctx, tenantID)
}

// UpdateStatus moves a lead to another sales stage.
func (s *Service) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status domain.LeadStatus) (domain.Lead, error) {
	parsed, ok := domain.ParseLeadStatus(string(status))
	if !ok {
		return domain.Lead{}, apperr.Validation("invalid status")
	}
	return s.mutate(ctx, tenantID, id, func(l *domain.Lead) { l.Status = parsed })
}

// Assign sets or clears the responsible user. Agents may not reassign.
func (s *Service) Assign(ctx context.Context, tenantID, id uuid.UUID, role domain.Role, assignee *uuid.UUID) (domain.Lead, error) {
	if role == domain.RoleAgent {
		return domain.Lead{}, apperr.Forbidden("agents cannot assign leads")
	}
	return s.mutate(ctx, tenantID, id, func(l *domain.Lead) { l.AssignedUserID = assignee })
}

// Timeline returns the lead's events in ascending order, classified for the chat view.
func (s *Service) Timeline(ctx context.Context, tenantID, id uuid.UUID) ([]domain.TimelineEntry, error) {
	if _, err := s.store.GetByID(ctx, tenantID, id, false); err != nil {
		return nil, translate(err)
	}
	evs, err := s.store.ListEvents(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return domain.Timeline(evs), nil
}

// AddNote appends an internal CRM event. Channels owned by the intake pipeline
// cannot be written from here.
func (s *Service) AddNote(ctx context.Context, tenantID, leadID uuid.UUID, channel string, payload json.RawMessage) (domain.LeadEvent, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = string(domain.ChannelCRMNote)
	}
	if reservedChannel(channel) {
		return domain.LeadEvent{}, apperr.Validation("channel is reserved")
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	if !json.Valid(payload) {
		return domain.LeadEvent{}, apperr.Validation("payload must be valid JSON")
	}

	var ev domain.LeadEvent
	err := s.store.InTx(ctx, func(q repository.Queries) error {
		if _, err := q.GetByID(ctx, tenantID, leadID, false); err != nil {
			return err
		}
		var err error
		ev, err = q.AppendEvent(ctx, domain.LeadEvent{
			TenantID: tenantID,
			LeadID:   leadID,
			Channel:  channel,
			Payload:  payload,
		})
		return err
	})
	if err != nil {
		return domain.LeadEvent{}, translate(err)
	}
	return ev, nil
}

func (s *Service) mutate(ctx context.Context, tenantID, id uuid.UUID, apply func(*domain.Lead)) (domain.Lead, error) {
	var updated domain.Lead
	err := s.store.InTx(ctx, func(q repository.Queries) error {
		lead, err := q.GetByID(ctx, tenantID, id, true)
		if err != nil {
			return err
		}
		apply(&lead)
		updated, err = q.Update(ctx, lead)
		return err
	})
	if err != nil {
		return domain.Lead{}, translate(err)
	}
	return updated, nil
}

func reservedChannel(channel string) bool {
	ch := strings.ToLower(channel)
	return domain.IsIngestChannel(domain.Channel(ch)) ||
		strings.HasPrefix(ch, "whatsapp.") ||
		strings.HasPrefix(ch, "system.")
}

// translate maps repository sentinels to typed errors and passes anything else through.
func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(msgLeadNotFound)
	case errors.Is(err, repository.ErrConflict):
		return apperr.Conflict("lead was modified concurrently")
	default:
		return err
	}
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
