// Package reasons manages the per-tenant catalog of labels managers pick from
// when resolving a lead review.
package reasons

import (
	"context"
	"errors"
	"time"

	"viacrm_backend/internal/leads/domain"
	"viacrm_backend/platform/apperr"
	"viacrm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const msgReasonNotFound = "reason not found"

// CreateInput holds the fields of a new reason.
type CreateInput struct {
	Label     string
	SortOrder int
}

// UpdateInput holds a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Label     *string
	Active    *bool
	SortOrder *int
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]domain.DecisionReason, error) {
	return s.repo.List(ctx, tenantID, activeOnly)
}

func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, role domain.Role, in CreateInput) (domain.DecisionReason, error) {
	if !domain.CanManage(role) {
		return domain.DecisionReason{}, apperr.Forbidden("only owners and managers can edit reasons")
	}
	label := sanitize.Text(in.Label)
	if label == "" {
		return domain.DecisionReason{}, apperr.Validation("label is required")
	}
	return s.repo.Create(ctx, domain.DecisionReason{
		TenantID:  tenantID,
		Label:     label,
		Active:    true,
		SortOrder: in.SortOrder,
	})
}

func (s *Service) Update(ctx context.Context, tenantID, id uuid.UUID, role domain.Role, in UpdateInput) (domain.DecisionReason, error) {
	if !domain.CanManage(role) {
		return domain.DecisionReason{}, apperr.Forbidden("only owners and managers can edit reasons")
	}

	current, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return domain.DecisionReason{}, translate(err)
	}

	if in.Label != nil {
		label := sanitize.Text(*in.Label)
		if label == "" {
			return domain.DecisionReason{}, apperr.Validation("label cannot be empty")
		}
		current.Label = label
	}
	if in.Active != nil {
		current.Active = *in.Active
	}
	if in.SortOrder != nil {
		current.SortOrder = *in.SortOrder
	}

	updated, err := s.repo.Update(ctx, current)
	return updated, translate(err)
}

// Delete hides the reason from the catalog. Decisions already recorded keep its id.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID, role domain.Role) error {
	if !domain.CanManage(role) {
		return apperr.Forbidden("only owners and managers can edit reasons")
	}
	return translate(s.repo.SoftDelete(ctx, tenantID, id, s.now()))
}

func translate(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound(msgReasonNotFound)
	}
	return err
}
