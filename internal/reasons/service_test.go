package reasons

import (
	"context"
	"testing"
	"time"

	"viacrm_backend/internal/leads/domain"
	"viacrm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	repo := NewMemoryRepository()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		base = base.Add(time.Second)
		return base
	}
	return NewService(repo)
}

func TestCreateAndListOrdersBySortOrder(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	tenant := uuid.New()

	_, err := svc.Create(ctx, tenant, domain.RoleManager, CreateInput{Label: "Cliente pediu outro corretor", SortOrder: 2})
	require.NoError(t, err)
	_, err = svc.Create(ctx, tenant, domain.RoleOwner, CreateInput{Label: "  Retorno do mesmo corretor ", SortOrder: 1})
	require.NoError(t, err)
	_, err = svc.Create(ctx, uuid.New(), domain.RoleOwner, CreateInput{Label: "Other tenant"})
	require.NoError(t, err)

	items, err := svc.List(ctx, tenant, false)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Retorno do mesmo corretor", items[0].Label)
	assert.True(t, items[0].Active)
	assert.Equal(t, "Cliente pediu outro corretor", items[1].Label)
}

func TestWritesRequireManagerRole(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	tenant := uuid.New()

	_, err := svc.Create(ctx, tenant, domain.RoleAgent, CreateInput{Label: "x"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	created, err := svc.Create(ctx, tenant, domain.RoleManager, CreateInput{Label: "x"})
	require.NoError(t, err)

	label := "y"
	_, err = svc.Update(ctx, tenant, created.ID, domain.RoleAgent, UpdateInput{Label: &label})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.True(t, apperr.Is(svc.Delete(ctx, tenant, created.ID, domain.RoleAgent), apperr.KindForbidden))
}

func TestCreateRejectsBlankLabel(t *testing.T) {
	svc := newTestService()
	_, err := svc.Create(context.Background(), uuid.New(), domain.RoleOwner, CreateInput{Label: "   "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUpdateIsPartial(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	tenant := uuid.New()

	created, err := svc.Create(ctx, tenant, domain.RoleOwner, CreateInput{Label: "a", SortOrder: 3})
	require.NoError(t, err)

	inactive := false
	updated, err := svc.Update(ctx, tenant, created.ID, domain.RoleOwner, UpdateInput{Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "a", updated.Label)
	assert.Equal(t, 3, updated.SortOrder)
	assert.False(t, updated.Active)

	active, err := svc.List(ctx, tenant, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.List(ctx, tenant, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpdateOtherTenantIsNotFound(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, uuid.New(), domain.RoleOwner, CreateInput{Label: "a"})
	require.NoError(t, err)

	label := "b"
	_, err = svc.Update(ctx, uuid.New(), created.ID, domain.RoleOwner, UpdateInput{Label: &label})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteIsSoft(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	tenant := uuid.New()

	created, err := svc.Create(ctx, tenant, domain.RoleOwner, CreateInput{Label: "a"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, tenant, created.ID, domain.RoleManager))

	items, err := svc.List(ctx, tenant, false)
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.True(t, apperr.Is(svc.Delete(ctx, tenant, created.ID, domain.RoleManager), apperr.KindNotFound))
}

func TestCreateStripsMarkupFromLabel(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	created, err := svc.Create(context.Background(), uuid.New(), domain.RoleOwner, CreateInput{Label: "<b>Sem</b>   interesse"})
	require.NoError(t, err)
	assert.Equal(t, "Sem interesse", created.Label)
}
