package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"viacrm_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and STORE_DRIVER=memory.
// Transactions are serialized and applied to a copy that replaces the live
// state only on success.
type MemoryStore struct {
	mu    sync.RWMutex
	state memoryState
	now   func() time.Time
}

type memoryState struct {
	leads  map[uuid.UUID]domain.Lead
	events []domain.LeadEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memoryState{leads: make(map[uuid.UUID]domain.Lead)},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the timestamp source. Used by tests that assert ordering.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s memoryState) clone() memoryState {
	leads := make(map[uuid.UUID]domain.Lead, len(s.leads))
	for id, l := range s.leads {
		leads[id] = l
	}
	events := make([]domain.LeadEvent, len(s.events))
	copy(events, s.events)
	return memoryState{leads: leads, events: events}
}

// InTx runs fn against a private copy of the state and publishes it when fn succeeds.
func (s *MemoryStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := &memoryView{state: s.state.clone(), now: s.now}
	if err := fn(view); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = view.state
	return nil
}

func (s *MemoryStore) read() *memoryView {
	return &memoryView{state: s.state, now: s.now}
}

func (s *MemoryStore) GetByID(ctx context.Context, tenantID, id uuid.UUID, forUpdate bool) (domain.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetByID(ctx, tenantID, id, forUpdate)
}

func (s *MemoryStore) FindByPhoneKey(ctx context.Context, tenantID uuid.UUID, key string, forUpdate bool) (domain.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindByPhoneKey(ctx, tenantID, key, forUpdate)
}

func (s *MemoryStore) List(ctx context.Context, params ListParams) ([]domain.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().List(ctx, params)
}

func (s *MemoryStore) ManagerQueue(ctx context.Context, tenantID uuid.UUID) ([]domain.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ManagerQueue(ctx, tenantID)
}

func (s *MemoryStore) ListEvents(ctx context.Context, tenantID, leadID uuid.UUID) ([]domain.LeadEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListEvents(ctx, tenantID, leadID)
}

func (s *MemoryStore) Create(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	var created domain.Lead
	err := s.InTx(ctx, func(q Queries) error {
		var err error
		created, err = q.Create(ctx, lead)
		return err
	})
	return created, err
}

func (s *MemoryStore) Update(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	var updated domain.Lead
	err := s.InTx(ctx, func(q Queries) error {
		var err error
		updated, err = q.Update(ctx, lead)
		return err
	})
	return updated, err
}

func (s *MemoryStore) AppendEvent(ctx context.Context, event domain.LeadEvent) (domain.LeadEvent, error) {
	var appended domain.LeadEvent
	err := s.InTx(ctx, func(q Queries) error {
		var err error
		appended, err = q.AppendEvent(ctx, event)
		return err
	})
	return appended, err
}

// memoryView implements Queries over a state snapshot. Callers hold the store lock.
type memoryView struct {
	state memoryState
	now   func() time.Time
}

func (v *memoryView) GetByID(_ context.Context, tenantID, id uuid.UUID, _ bool) (domain.Lead, error) {
	l, ok := v.state.leads[id]
	if !ok || l.TenantID != tenantID {
		return domain.Lead{}, ErrNotFound
	}
	return l, nil
}

func (v *memoryView) FindByPhoneKey(_ context.Context, tenantID uuid.UUID, key string, _ bool) (domain.Lead, error) {
	for _, l := range v.state.leads {
		if l.TenantID == tenantID && l.PhoneKey != nil && *l.PhoneKey == key {
			return l, nil
		}
	}
	return domain.Lead{}, ErrNotFound
}

func (v *memoryView) List(_ context.Context, params ListParams) ([]domain.Lead, error) {
	items := make([]domain.Lead, 0)
	for _, l := range v.state.leads {
		if l.TenantID != params.TenantID {
			continue
		}
		if params.Status != nil && l.Status != *params.Status {
			continue
		}
		if params.AssignedUserID != nil && (l.AssignedUserID == nil || *l.AssignedUserID != *params.AssignedUserID) {
			continue
		}
		if params.BranchID != nil && (l.BranchID == nil || *l.BranchID != *params.BranchID) {
			continue
		}
		items = append(items, l)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (v *memoryView) ManagerQueue(_ context.Context, tenantID uuid.UUID) ([]domain.Lead, error) {
	items := make([]domain.Lead, 0)
	for _, l := range v.state.leads {
		if l.TenantID == tenantID && l.NeedsManagerReview {
			items = append(items, l)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].LastInboundAt, items[j].LastInboundAt
		switch {
		case a == nil && b == nil:
			return items[i].CreatedAt.After(items[j].CreatedAt)
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return items, nil
}

func (v *memoryView) Create(_ context.Context, lead domain.Lead) (domain.Lead, error) {
	if lead.PhoneKey != nil {
		if _, err := v.FindByPhoneKey(context.Background(), lead.TenantID, *lead.PhoneKey, false); err == nil {
			return domain.Lead{}, ErrConflict
		}
	}
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.Status == "" {
		lead.Status = domain.StatusNew
	}
	now := v.now()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	v.state.leads[lead.ID] = lead
	return lead, nil
}

func (v *memoryView) Update(_ context.Context, lead domain.Lead) (domain.Lead, error) {
	current, ok := v.state.leads[lead.ID]
	if !ok || current.TenantID != lead.TenantID {
		return domain.Lead{}, ErrNotFound
	}
	if lead.PhoneKey != nil {
		for id, other := range v.state.leads {
			if id != lead.ID && other.TenantID == lead.TenantID && other.PhoneKey != nil && *other.PhoneKey == *lead.PhoneKey {
				return domain.Lead{}, ErrConflict
			}
		}
	}
	lead.CreatedAt = current.CreatedAt
	lead.UpdatedAt = v.now()
	v.state.leads[lead.ID] = lead
	return lead, nil
}

func (v *memoryView) AppendEvent(_ context.Context, event domain.LeadEvent) (domain.LeadEvent, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if len(event.Payload) == 0 {
		event.Payload = []byte("{}")
	}
	event.CreatedAt = v.now()
	v.state.events = append(v.state.events, event)
	return event, nil
}

func (v *memoryView) ListEvents(_ context.Context, tenantID, leadID uuid.UUID) ([]domain.LeadEvent, error) {
	items := make([]domain.LeadEvent, 0)
	for _, ev := range v.state.events {
		if ev.TenantID == tenantID && ev.LeadID == leadID {
			items = append(items, ev)
		}
	}
	return items, nil
}

var _ Store = (*MemoryStore)(nil)
