package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"viacrm_backend/internal/events"
	"viacrm_backend/internal/leads/domain"
	"viacrm_backend/internal/leads/repository"
	"viacrm_backend/platform/apperr"
	"viacrm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestNewThenReentry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Ingest(ctx, f.tenant, domain.ChannelForm, json.RawMessage(`{"telefone":"11988887777","nome":"Ana"}`))
	require.NoError(t, err)
	assert.False(t, first.IsReentry)
	assert.False(t, first.Lead.NeedsManagerReview)
	assert.Equal(t, 9999, first.Lead.QueuePriority)
	assert.Equal(t, "988887777", *first.Lead.PhoneKey)
	assert.NotNil(t, first.Lead.LastInboundAt)
	assert.False(t, first.Event.IsReentry)

	second, err := f.svc.Ingest(ctx, f.tenant, domain.ChannelWhatsApp, json.RawMessage(`{"telefone":"+5511988887777","nome":"Ana Maria"}`))
	require.NoError(t, err)
	assert.True(t, second.IsReentry)
	assert.Equal(t, first.Lead.ID, second.Lead.ID)
	assert.Equal(t, "Ana Maria", second.Lead.Name)
	assert.Equal(t, "11988887777", *second.Lead.Phone)
	assert.Equal(t, "whatsapp", *second.Lead.Origin)
	assert.True(t, second.Lead.NeedsManagerReview)
	assert.Equal(t, 1, second.Lead.QueuePriority)
	assert.True(t, second.Event.IsReentry)
	assert.True(t, second.Lead.LastInboundAt.After(*first.Lead.LastInboundAt))

	leads, err := f.store.List(ctx, repository.ListParams{TenantID: f.tenant})
	require.NoError(t, err)
	assert.Len(t, leads, 1)

	evs := f.events(t, first.Lead.ID)
	require.Len(t, evs, 2)
	assert.JSONEq(t, `{"telefone":"+5511988887777","nome":"Ana Maria"}`, string(evs[1].Payload))
}

func TestIngestDefaultsAndTriageBranch(t *testing.T) {
	triage := uuid.New()
	f := newFixture(t, WithTriageBranch(&triage))
	ctx := context.Background()

	res, err := f.svc.Ingest(ctx, f.tenant, domain.ChannelSite, json.RawMessage(`{"email":"x@example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultLeadName, res.Lead.Name)
	assert.Nil(t, res.Lead.Phone)
	assert.Nil(t, res.Lead.PhoneKey)
	require.NotNil(t, res.Lead.BranchID)
	assert.Equal(t, triage, *res.Lead.BranchID)

	// Without a phone key no dedup is possible.
	again, err := f.svc.Ingest(ctx, f.tenant, domain.ChannelSite, json.RawMessage(`{"email":"x@example.com"}`))
	require.NoError(t, err)
	assert.False(t, again.IsReentry)
	assert.NotEqual(t, res.Lead.ID, again.Lead.ID)
}

func TestIngestReentryKeepsBranchAndNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	branch := uuid.New()
	other := uuid.New()

	first, err := f.svc.Ingest(ctx, f.tenant, domain.ChannelForm,
		json.RawMessage(`{"telefone":"21977776666","nome":"Bia","branchId":"`+branch.String()+`"}`))
	require.NoError(t, err)
	_, err = f.svc.mutate(ctx, f.tenant, first.Lead.ID, func(l *domain.Lead) { l.Note = strPtr("vip") })
	require.NoError(t, err)

	second, err := f.svc.Ingest(ctx, f.tenant, domain.ChannelMetaLeads, json.RawMessage(`{
		"field_data":[{"name":"phone_number","values":["977776666"]},{"name":"email","values":["bia@example.com"]}],
		"branchId":"`+other.String()+`"}`))
	require.NoError(t, err)

	assert.True(t, second.IsReentry)
	assert.Equal(t, "Bia", second.Lead.Name, "absent name keeps the stored one")
	assert.Equal(t, branch, *second.Lead.BranchID)
	assert.Equal(t, "vip", *second.Lead.Note)
	assert.Equal(t, "bia@example.com", *second.Lead.Email)
	assert.Equal(t, "meta_leads", *second.Lead.Origin)
}

func TestIngestTenantIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := json.RawMessage(`{"telefone":"11988887777"}`)

	a, err := f.svc.Ingest(ctx, f.tenant, domain.ChannelForm, payload)
	require.NoError(t, err)
	b, err := f.svc.Ingest(ctx, uuid.New(), domain.ChannelForm, payload)
	require.NoError(t, err)

	assert.False(t, b.IsReentry)
	assert.NotEqual(t, a.Lead.ID, b.Lead.ID)
}

func TestIngestRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, uuid.Nil, domain.ChannelForm, nil)
	assertKind(t, err, apperr.KindValidation)

	_, err = f.svc.Ingest(ctx, f.tenant, domain.Channel("fax"), nil)
	assertKind(t, err, apperr.KindValidation)

	_, err = f.svc.Ingest(ctx, f.tenant, domain.ChannelForm, json.RawMessage(`{not json`))
	assertKind(t, err, apperr.KindValidation)
}

func TestIngestPublishesEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var got atomic.Value
	f.bus.Subscribe(events.LeadIngested{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		got.Store(e.(events.LeadIngested))
		return nil
	}))

	res, err := f.svc.Ingest(ctx, f.tenant, domain.ChannelForm, json.RawMessage(`{"telefone":"11988887777"}`))
	require.NoError(t, err)
	f.bus.Wait()

	ev, ok := got.Load().(events.LeadIngested)
	require.True(t, ok)
	assert.Equal(t, res.Lead.ID, ev.LeadID)
	assert.Equal(t, res.Event.ID, ev.EventID)
	assert.Equal(t, "form", ev.Channel)
}

// racingStore makes the first Create calls lose the phone key race. When
// competitor is set, a competing lead is committed after each lost attempt.
type racingStore struct {
	*repository.MemoryStore
	conflicts  atomic.Int32
	competitor *domain.Lead
	attempts   atomic.Int32
}

type racingQueries struct {
	repository.Queries
	parent *racingStore
	lost   *bool
}

func (q racingQueries) Create(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	if q.parent.conflicts.Add(-1) >= 0 {
		*q.lost = true
		return domain.Lead{}, repository.ErrConflict
	}
	return q.Queries.Create(ctx, lead)
}

func (s *racingStore) InTx(ctx context.Context, fn func(q repository.Queries) error) error {
	s.attempts.Add(1)
	lost := false
	err := s.MemoryStore.InTx(ctx, func(q repository.Queries) error {
		return fn(racingQueries{Queries: q, parent: s, lost: &lost})
	})
	if lost && s.competitor != nil {
		if _, cerr := s.MemoryStore.Create(ctx, *s.competitor); cerr == nil {
			s.competitor = nil
		}
	}
	return err
}

func TestIngestRetriesLostRace(t *testing.T) {
	tenant := uuid.New()
	store := &racingStore{
		MemoryStore: repository.NewMemoryStore(),
		competitor:  &domain.Lead{TenantID: tenant, Name: "Winner", Phone: strPtr("11988887777"), PhoneKey: strPtr("988887777")},
	}
	store.conflicts.Store(1)
	svc := New(store, events.NewInMemoryBus(logger.Discard()), logger.Discard())

	res, err := svc.Ingest(context.Background(), tenant, domain.ChannelForm, json.RawMessage(`{"telefone":"11988887777","nome":"Loser"}`))
	require.NoError(t, err)
	assert.True(t, res.IsReentry)
	assert.Equal(t, "Loser", res.Lead.Name)
	assert.Equal(t, int32(2), store.attempts.Load())

	leads, err := store.List(context.Background(), repository.ListParams{TenantID: tenant})
	require.NoError(t, err)
	assert.Len(t, leads, 1)
}

func TestIngestGivesUpAfterThreeConflicts(t *testing.T) {
	store := &racingStore{MemoryStore: repository.NewMemoryStore()}
	store.conflicts.Store(10)
	svc := New(store, events.NewInMemoryBus(logger.Discard()), logger.Discard())

	_, err := svc.Ingest(context.Background(), uuid.New(), domain.ChannelForm, json.RawMessage(`{"telefone":"11988887777"}`))
	assertKind(t, err, apperr.KindConflict)
	assert.Equal(t, int32(3), store.attempts.Load())
}

func TestIngestConcurrentSameContactCreatesOneLead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var reentries atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Ingest(ctx, f.tenant, domain.ChannelForm, json.RawMessage(`{"telefone":"11988887777"}`))
			if assert.NoError(t, err) && res.IsReentry {
				reentries.Add(1)
			}
		}()
	}
	wg.Wait()

	leads, err := f.store.List(ctx, repository.ListParams{TenantID: f.tenant})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, int32(7), reentries.Load())
	assert.Len(t, f.events(t, leads[0].ID), 8)
}

func TestIngestInbound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.IngestInbound(ctx, f.tenant, InboundMessage{From: "5511988887777", Text: "oi", MessageID: "wamid.A"})
	require.NoError(t, err)
	assert.False(t, res.IsReentry)
	assert.Equal(t, domain.WhatsAppLeadName, res.Lead.Name)
	assert.Equal(t, "5511988887777", *res.Lead.Phone)
	assert.Equal(t, "whatsapp.in", res.Event.Channel)
	assert.JSONEq(t, `{"from":"5511988887777","text":"oi","messageId":"wamid.A"}`, string(res.Event.Payload))

	again, err := f.svc.IngestInbound(ctx, f.tenant, InboundMessage{From: "5511988887777", Text: "tudo bem?", ProfileName: "Ana"})
	require.NoError(t, err)
	assert.True(t, again.IsReentry)
	assert.Equal(t, "Ana", again.Lead.Name)
	assert.True(t, again.Lead.NeedsManagerReview)

	_, err = f.svc.IngestInbound(ctx, f.tenant, InboundMessage{From: "abc"})
	assertKind(t, err, apperr.KindValidation)
}
