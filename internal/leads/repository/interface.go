package repository

import (
	"context"
	"errors"

	"viacrm_backend/internal/leads/domain"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no lead matches within the tenant.
	ErrNotFound = errors.New("lead not found")
	// ErrConflict is returned when a create loses the race on (tenant_id, phone_key).
	ErrConflict = errors.New("lead phone key conflict")
)

// ListParams filters tenant lead listings. Results are ordered newest first.
type ListParams struct {
	TenantID       uuid.UUID
	Status         *domain.LeadStatus
	AssignedUserID *uuid.UUID
	BranchID       *uuid.UUID
}

// LeadReader provides tenant-scoped reads.
type LeadReader interface {
	// GetByID returns ErrNotFound when the lead does not belong to tenantID.
	GetByID(ctx context.Context, tenantID, id uuid.UUID, forUpdate bool) (domain.Lead, error)
	// FindByPhoneKey returns ErrNotFound when no lead carries key.
	FindByPhoneKey(ctx context.Context, tenantID uuid.UUID, key string, forUpdate bool) (domain.Lead, error)
	List(ctx context.Context, params ListParams) ([]domain.Lead, error)
	// ManagerQueue returns leads flagged for review, most recent inbound first.
	ManagerQueue(ctx context.Context, tenantID uuid.UUID) ([]domain.Lead, error)
}

// LeadWriter persists lead rows.
type LeadWriter interface {
	// Create returns ErrConflict on a duplicate phone key.
	Create(ctx context.Context, lead domain.Lead) (domain.Lead, error)
	Update(ctx context.Context, lead domain.Lead) (domain.Lead, error)
}

// EventLog is the append-only lead history.
type EventLog interface {
	AppendEvent(ctx context.Context, event domain.LeadEvent) (domain.LeadEvent, error)
	// ListEvents returns events in creation order.
	ListEvents(ctx context.Context, tenantID, leadID uuid.UUID) ([]domain.LeadEvent, error)
}

// Queries is everything available inside and outside a transaction.
type Queries interface {
	LeadReader
	LeadWriter
	EventLog
}

// Store adds transactional scope to Queries.
type Store interface {
	Queries
	// InTx runs fn in one transaction. fn's error rolls everything back.
	InTx(ctx context.Context, fn func(q Queries) error) error
}
