package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"viacrm_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(s string) *string { return &s }

func TestMemoryStoreTenantIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tenantA, tenantB := uuid.New(), uuid.New()

	lead, err := store.Create(ctx, domain.Lead{TenantID: tenantA, Name: "Ana", PhoneKey: key("988887777")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, lead.Status)

	_, err = store.GetByID(ctx, tenantB, lead.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.FindByPhoneKey(ctx, tenantB, "988887777", false)
	assert.ErrorIs(t, err, ErrNotFound)

	found, err := store.FindByPhoneKey(ctx, tenantA, "988887777", true)
	require.NoError(t, err)
	assert.Equal(t, lead.ID, found.ID)

	// Same key in another tenant is allowed.
	_, err = store.Create(ctx, domain.Lead{TenantID: tenantB, Name: "Other", PhoneKey: key("988887777")})
	require.NoError(t, err)
}

func TestMemoryStoreUniquePhoneKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tenant := uuid.New()

	_, err := store.Create(ctx, domain.Lead{TenantID: tenant, PhoneKey: key("123456789")})
	require.NoError(t, err)
	_, err = store.Create(ctx, domain.Lead{TenantID: tenant, PhoneKey: key("123456789")})
	assert.ErrorIs(t, err, ErrConflict)

	// Leads without a key never collide.
	_, err = store.Create(ctx, domain.Lead{TenantID: tenant})
	require.NoError(t, err)
	_, err = store.Create(ctx, domain.Lead{TenantID: tenant})
	require.NoError(t, err)
}

func TestMemoryStoreInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tenant := uuid.New()
	boom := errors.New("boom")

	err := store.InTx(ctx, func(q Queries) error {
		lead, err := q.Create(ctx, domain.Lead{TenantID: tenant, PhoneKey: key("111111111")})
		require.NoError(t, err)
		_, err = q.AppendEvent(ctx, domain.LeadEvent{TenantID: tenant, LeadID: lead.ID, Channel: "form"})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	leads, err := store.List(ctx, ListParams{TenantID: tenant})
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestMemoryStoreManagerQueueOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tenant := uuid.New()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	at := func(d time.Duration) *time.Time { ts := base.Add(d); return &ts }
	older, err := store.Create(ctx, domain.Lead{TenantID: tenant, Name: "older", NeedsManagerReview: true, LastInboundAt: at(time.Minute)})
	require.NoError(t, err)
	newer, err := store.Create(ctx, domain.Lead{TenantID: tenant, Name: "newer", NeedsManagerReview: true, LastInboundAt: at(time.Hour)})
	require.NoError(t, err)
	_, err = store.Create(ctx, domain.Lead{TenantID: tenant, Name: "not flagged", LastInboundAt: at(2 * time.Hour)})
	require.NoError(t, err)

	queue, err := store.ManagerQueue(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, newer.ID, queue[0].ID)
	assert.Equal(t, older.ID, queue[1].ID)
}

func TestMemoryStoreListFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tenant := uuid.New()
	agent := uuid.New()
	branch := uuid.New()

	_, err := store.Create(ctx, domain.Lead{TenantID: tenant, Name: "mine", AssignedUserID: &agent, BranchID: &branch})
	require.NoError(t, err)
	_, err = store.Create(ctx, domain.Lead{TenantID: tenant, Name: "closed", Status: domain.StatusClosed})
	require.NoError(t, err)

	mine, err := store.List(ctx, ListParams{TenantID: tenant, AssignedUserID: &agent})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "mine", mine[0].Name)

	closed := domain.StatusClosed
	byStatus, err := store.List(ctx, ListParams{TenantID: tenant, Status: &closed})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "closed", byStatus[0].Name)

	byBranch, err := store.List(ctx, ListParams{TenantID: tenant, BranchID: &branch})
	require.NoError(t, err)
	assert.Len(t, byBranch, 1)
}

func TestMemoryStoreEventsAscending(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tenant, lead := uuid.New(), uuid.New()

	for _, ch := range []string{"form", "whatsapp.in", "whatsapp.out"} {
		_, err := store.AppendEvent(ctx, domain.LeadEvent{TenantID: tenant, LeadID: lead, Channel: ch})
		require.NoError(t, err)
	}
	_, err := store.AppendEvent(ctx, domain.LeadEvent{TenantID: uuid.New(), LeadID: lead, Channel: "form"})
	require.NoError(t, err)

	events, err := store.ListEvents(ctx, tenant, lead)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "form", events[0].Channel)
	assert.Equal(t, "whatsapp.out", events[2].Channel)
	assert.JSONEq(t, `{}`, string(events[0].Payload))
}
