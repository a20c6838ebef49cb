package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"viacrm_backend/internal/events"
	"viacrm_backend/internal/leads/domain"
	"viacrm_backend/internal/leads/repository"
	"viacrm_backend/internal/leads/service"
	"viacrm_backend/platform/apperr"
	"viacrm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	to   []string
	body []string
	err  error
}

func (s *recordingSender) SendText(_ context.Context, to, body string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.to = append(s.to, to)
	s.body = append(s.body, body)
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(`{"messages":[{"id":"wamid.ack"}]}`), nil
}

type fakeArchive struct {
	stored [][]byte
	err    error
}

func (a *fakeArchive) Store(_ context.Context, source string, raw []byte) (string, error) {
	a.stored = append(a.stored, raw)
	if a.err != nil {
		return "", a.err
	}
	return source + "/obj.json", nil
}

type correlatorFixture struct {
	correlator *Correlator
	store      *repository.MemoryStore
	sender     *recordingSender
	tenantID   uuid.UUID
}

func newCorrelatorFixture(t *testing.T, opts ...CorrelatorOption) *correlatorFixture {
	t.Helper()
	log := logger.Discard()
	store := repository.NewMemoryStore()
	sender := &recordingSender{}
	svc := service.New(store, events.NewInMemoryBus(log), log, service.WithSender(sender))
	tenantID := uuid.New()
	return &correlatorFixture{
		correlator: NewCorrelator(svc, tenantID, log, opts...),
		store:      store,
		sender:     sender,
		tenantID:   tenantID,
	}
}

func delivery(from, name, text string) []byte {
	return []byte(`{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{` +
		`"contacts":[{"wa_id":"` + from + `","profile":{"name":"` + name + `"}}],` +
		`"messages":[{"from":"` + from + `","id":"wamid.` + from + `","type":"text","text":{"body":"` + text + `"}}]}}]}]}`)
}

func (f *correlatorFixture) leadEvents(t *testing.T, key string) (domain.Lead, []domain.LeadEvent) {
	t.Helper()
	ctx := context.Background()
	lead, err := f.store.FindByPhoneKey(ctx, f.tenantID, key, false)
	require.NoError(t, err)
	evs, err := f.store.ListEvents(ctx, f.tenantID, lead.ID)
	require.NoError(t, err)
	return lead, evs
}

func TestReceiveIgnoresDeliveriesWithoutMessages(t *testing.T) {
	f := newCorrelatorFixture(t)

	for _, raw := range []string{`{}`, `{"entry":[]}`, `{"entry":[{"changes":[{"value":{"statuses":[{"id":"x"}]}}]}]}`} {
		res, err := f.correlator.Receive(context.Background(), []byte(raw))
		require.NoError(t, err, raw)
		assert.True(t, res.Ignored, raw)
	}
	assert.Empty(t, f.sender.to)
}

func TestReceiveRejectsInvalidJSON(t *testing.T) {
	f := newCorrelatorFixture(t)
	_, err := f.correlator.Receive(context.Background(), []byte(`{not json`))
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}

func TestReceiveRequiresTenant(t *testing.T) {
	log := logger.Discard()
	c := NewCorrelator(service.New(repository.NewMemoryStore(), events.NewInMemoryBus(log), log), uuid.Nil, log)
	_, err := c.Receive(context.Background(), delivery("5511988887777", "Ana", "oi"))
	assert.True(t, apperr.Is(err, apperr.KindInternal))
}

func TestReceiveCreatesLeadAndAcknowledges(t *testing.T) {
	f := newCorrelatorFixture(t)

	res, err := f.correlator.Receive(context.Background(), delivery("5511988887777", "Ana Souza", "quero um orçamento"))
	require.NoError(t, err)
	assert.Equal(t, ReceiveResult{Processed: 1, Acked: 1}, res)

	lead, evs := f.leadEvents(t, "988887777")
	assert.Equal(t, "Ana Souza", lead.Name)
	require.NotNil(t, lead.Origin)
	assert.Equal(t, "whatsapp", *lead.Origin)
	assert.False(t, lead.NeedsManagerReview)
	assert.Equal(t, domain.PriorityNew, lead.QueuePriority)
	assert.Nil(t, lead.Email)
	assert.Nil(t, lead.BranchID)

	require.Len(t, evs, 2)
	assert.Equal(t, "whatsapp.in", evs[0].Channel)
	assert.False(t, evs[0].IsReentry)
	assert.JSONEq(t, `{"from":"5511988887777","text":"quero um orçamento","messageId":"wamid.5511988887777"}`, string(evs[0].Payload))
	assert.Equal(t, "whatsapp.out", evs[1].Channel)

	require.Len(t, f.sender.body, 1)
	assert.Equal(t, "5511988887777", f.sender.to[0])
	assert.Equal(t, `Recebi sua mensagem: "quero um orçamento"`, f.sender.body[0])
}

func TestReceiveSecondMessageIsReentry(t *testing.T) {
	f := newCorrelatorFixture(t)
	ctx := context.Background()

	_, err := f.correlator.Receive(ctx, delivery("5511988887777", "Ana", "oi"))
	require.NoError(t, err)
	_, err = f.correlator.Receive(ctx, delivery("5511988887777", "", "de novo"))
	require.NoError(t, err)

	lead, evs := f.leadEvents(t, "988887777")
	assert.Equal(t, "Ana", lead.Name)
	assert.True(t, lead.NeedsManagerReview)
	assert.Equal(t, domain.PriorityReentry, lead.QueuePriority)

	require.Len(t, evs, 4)
	assert.True(t, evs[2].IsReentry)
	assert.Equal(t, "whatsapp.in", evs[2].Channel)
}

func TestReceiveKeepsInboundWhenAckFails(t *testing.T) {
	f := newCorrelatorFixture(t)
	f.sender.err = errors.New("provider down")

	res, err := f.correlator.Receive(context.Background(), delivery("5511988887777", "Ana", "oi"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 0, res.Acked)

	_, evs := f.leadEvents(t, "988887777")
	require.Len(t, evs, 1)
	assert.Equal(t, "whatsapp.in", evs[0].Channel)
}

func TestReceiveContinuesAfterFailedMessage(t *testing.T) {
	f := newCorrelatorFixture(t)
	raw := []byte(`{"entry":[{"changes":[{"value":{"messages":[` +
		`{"from":"","id":"wamid.bad","text":{"body":"?"}},` +
		`{"from":"5521977776666","id":"wamid.good","text":{"body":"ok"}}]}}]}]}`)

	res, err := f.correlator.Receive(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Processed)

	lead, _ := f.leadEvents(t, "977776666")
	assert.Equal(t, domain.WhatsAppLeadName, lead.Name)
}

func TestReceiveArchivesRawPayload(t *testing.T) {
	archive := &fakeArchive{err: errors.New("bucket missing")}
	f := newCorrelatorFixture(t, WithArchive(archive))
	raw := delivery("5511988887777", "Ana", "oi")

	res, err := f.correlator.Receive(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	require.Len(t, archive.stored, 1)
	assert.Equal(t, raw, archive.stored[0])
}

func TestProfileNamePrefersMatchingContact(t *testing.T) {
	contacts := []contact{{WaID: "1"}, {WaID: "2"}}
	contacts[0].Profile.Name = "First"
	contacts[1].Profile.Name = " Second "

	assert.Equal(t, "Second", profileName(contacts, "2"))
	assert.Equal(t, "First", profileName(contacts, "3"))
	assert.Equal(t, "", profileName(nil, "3"))
}
