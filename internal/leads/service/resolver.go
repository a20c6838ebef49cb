package service

import (
	"context"
	"errors"

	"viacrm_backend/internal/leads/domain"
	"viacrm_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// Resolver finds the lead a phone key belongs to.
type Resolver struct{}

func NewResolver() *Resolver { return &Resolver{} }

// Resolve returns the tenant's lead for key, or nil when key is nil or unknown.
// The row is locked when q is transactional so a concurrent ingestion of the
// same contact waits for this one.
func (r *Resolver) Resolve(ctx context.Context, q repository.LeadReader, tenantID uuid.UUID, key *string) (*domain.Lead, error) {
	if key == nil {
		return nil, nil
	}
	lead, err := q.FindByPhoneKey(ctx, tenantID, *key, true)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}
