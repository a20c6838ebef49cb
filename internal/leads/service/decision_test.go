package service

import (
	"context"
	"encoding/json"
	"testing"

	"viacrm_backend/internal/leads/domain"
	"viacrm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reentryLead(t *testing.T, f *fixture, phone string) domain.Lead {
	t.Helper()
	ctx := context.Background()
	payload := json.RawMessage(`{"telefone":"` + phone + `"}`)
	_, err := f.svc.Ingest(ctx, f.tenant, domain.ChannelForm, payload)
	require.NoError(t, err)
	res, err := f.svc.Ingest(ctx, f.tenant, domain.ChannelSite, payload)
	require.NoError(t, err)
	require.True(t, res.Lead.NeedsManagerReview)
	return res.Lead
}

func TestDecideByAgentIsDenied(t *testing.T) {
	f := newFixture(t)
	lead := reentryLead(t, f, "11988887777")

	_, err := f.svc.Decide(context.Background(), DecideInput{
		TenantID: f.tenant, LeadID: lead.ID,
		Decision: domain.DecisionKeepAgentReentry, ReasonID: "r1",
		ActorID: uuid.New(), ActorRole: domain.RoleAgent,
	})
	assertKind(t, err, apperr.KindForbidden)

	stored, err := f.svc.Get(context.Background(), f.tenant, lead.ID)
	require.NoError(t, err)
	assert.True(t, stored.NeedsManagerReview)
	assert.Len(t, f.events(t, lead.ID), 2)
}

func TestDecideByManagerClearsFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := reentryLead(t, f, "11988887777")
	actor := uuid.New()

	ev, err := f.svc.Decide(ctx, DecideInput{
		TenantID: f.tenant, LeadID: lead.ID,
		Decision: domain.DecisionAIRouteAnyAfterQualif, ReasonID: " reason-42 ",
		Justification: strPtr("cliente pediu outro vendedor"),
		ActorID:       actor, ActorRole: domain.RoleManager,
	})
	require.NoError(t, err)
	assert.Equal(t, "system.manager_decision", ev.Channel)

	stored, err := f.svc.Get(ctx, f.tenant, lead.ID)
	require.NoError(t, err)
	assert.False(t, stored.NeedsManagerReview)
	assert.Equal(t, domain.PriorityReentry, stored.QueuePriority, "priority is untouched")

	evs := f.events(t, lead.ID)
	require.Len(t, evs, 3)
	var payload domain.ManagerDecisionPayload
	require.NoError(t, json.Unmarshal(evs[2].Payload, &payload))
	assert.Equal(t, domain.DecisionAIRouteAnyAfterQualif, payload.Decision)
	assert.Equal(t, "reason-42", payload.ReasonID)
	assert.Equal(t, "cliente pediu outro vendedor", *payload.Justification)
	assert.Equal(t, actor, payload.ActorID)

	queue, err := f.svc.ManagerQueue(ctx, f.tenant)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestDecideValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := reentryLead(t, f, "11988887777")

	base := DecideInput{TenantID: f.tenant, LeadID: lead.ID, ActorRole: domain.RoleOwner}

	in := base
	in.Decision = "SOMETHING_ELSE"
	in.ReasonID = "r"
	_, err := f.svc.Decide(ctx, in)
	assertKind(t, err, apperr.KindValidation)

	in = base
	in.Decision = domain.DecisionKeepClosed
	_, err = f.svc.Decide(ctx, in)
	assertKind(t, err, apperr.KindValidation)

	in.ReasonID = "r"
	in.TenantID = uuid.New()
	_, err = f.svc.Decide(ctx, in)
	assertKind(t, err, apperr.KindNotFound)
}

func TestManagerQueueOrderedByLastInbound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := reentryLead(t, f, "11911111111")
	second := reentryLead(t, f, "11922222222")
	_, err := f.svc.Ingest(ctx, f.tenant, domain.ChannelForm, json.RawMessage(`{"telefone":"11933333333"}`))
	require.NoError(t, err)

	queue, err := f.svc.ManagerQueue(ctx, f.tenant)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, second.ID, queue[0].ID)
	assert.Equal(t, first.ID, queue[1].ID)

	// A new inbound on the first lead moves it to the front.
	_, err = f.svc.Ingest(ctx, f.tenant, domain.ChannelWhatsApp, json.RawMessage(`{"phone":"11911111111"}`))
	require.NoError(t, err)
	queue, err = f.svc.ManagerQueue(ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, first.ID, queue[0].ID)
}
