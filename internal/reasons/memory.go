package reasons

import (
	"context"
	"sort"
	"sync"
	"time"

	"viacrm_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// MemoryRepository keeps the catalog in process. Used with the memory store driver and in tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]domain.DecisionReason
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[uuid.UUID]domain.DecisionReason), now: time.Now}
}

func (m *MemoryRepository) List(_ context.Context, tenantID uuid.UUID, activeOnly bool) ([]domain.DecisionReason, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]domain.DecisionReason, 0)
	for _, r := range m.items {
		if r.TenantID != tenantID || r.DeletedAt != nil || (activeOnly && !r.Active) {
			continue
		}
		items = append(items, r)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].SortOrder != items[j].SortOrder {
			return items[i].SortOrder < items[j].SortOrder
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (m *MemoryRepository) Get(_ context.Context, tenantID, id uuid.UUID) (domain.DecisionReason, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.items[id]
	if !ok || r.TenantID != tenantID || r.DeletedAt != nil {
		return domain.DecisionReason{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryRepository) Create(_ context.Context, reason domain.DecisionReason) (domain.DecisionReason, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reason.ID == uuid.Nil {
		reason.ID = uuid.New()
	}
	now := m.now()
	reason.CreatedAt = now
	reason.UpdatedAt = now
	m.items[reason.ID] = reason
	return reason, nil
}

func (m *MemoryRepository) Update(_ context.Context, reason domain.DecisionReason) (domain.DecisionReason, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.items[reason.ID]
	if !ok || current.TenantID != reason.TenantID || current.DeletedAt != nil {
		return domain.DecisionReason{}, ErrNotFound
	}
	current.Label = reason.Label
	current.Active = reason.Active
	current.SortOrder = reason.SortOrder
	current.UpdatedAt = m.now()
	m.items[reason.ID] = current
	return current, nil
}

func (m *MemoryRepository) SoftDelete(_ context.Context, tenantID, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.items[id]
	if !ok || current.TenantID != tenantID || current.DeletedAt != nil {
		return ErrNotFound
	}
	current.DeletedAt = &at
	current.Active = false
	current.UpdatedAt = at
	m.items[id] = current
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
