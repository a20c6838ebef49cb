package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"viacrm_backend/internal/events"
	"viacrm_backend/internal/leads/repository"
	"viacrm_backend/internal/leads/service"
	"viacrm_backend/internal/leads/transport"
	"viacrm_backend/platform/httpkit"
	"viacrm_backend/platform/logger"
	"viacrm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	err error
	to  string
}

func (s *stubSender) SendText(_ context.Context, to, _ string) (json.RawMessage, error) {
	s.to = to
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(`{"messages":[{"id":"wamid.1"}]}`), nil
}

type testEnv struct {
	svc    *service.Service
	sender *stubSender
	tenant uuid.UUID
	user   uuid.UUID
}

func newTestEnv() *testEnv {
	log := logger.Discard()
	sender := &stubSender{}
	return &testEnv{
		svc:    service.New(repository.NewMemoryStore(), events.NewInMemoryBus(log), log, service.WithSender(sender)),
		sender: sender,
		tenant: uuid.New(),
		user:   uuid.New(),
	}
}

func (e *testEnv) router(role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, e.user)
		c.Set(httpkit.ContextRolesKey, []string{role})
		c.Set(httpkit.ContextTenantIDKey, e.tenant)
		c.Next()
	})
	New(e.svc, validator.New()).RegisterRoutes(r.Group("/leads"))
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (e *testEnv) reentryLead(t *testing.T) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	payload := json.RawMessage(`{"nome":"Ana","telefone":"11988887777"}`)
	_, err := e.svc.Ingest(ctx, e.tenant, "form", payload)
	require.NoError(t, err)
	res, err := e.svc.Ingest(ctx, e.tenant, "site", payload)
	require.NoError(t, err)
	require.True(t, res.IsReentry)
	return res.Lead.ID
}

func TestCreateAndGet(t *testing.T) {
	env := newTestEnv()
	r := env.router("AGENT")

	w := do(r, http.MethodPost, "/leads", `{"nome":"Bruno","telefone":"(21) 97777-6666"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[transport.LeadResponse](t, w)
	require.NotNil(t, created.Origin)
	assert.Equal(t, "crm", *created.Origin)
	assert.Equal(t, "NOVO", created.Status)

	w = do(r, http.MethodGet, "/leads/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[transport.LeadResponse](t, w).ID)

	w = do(r, http.MethodPost, "/leads", `{"nome":"Dup","telefone":"21977776666"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/leads", `{"nome":"  "}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/leads/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/leads/"+uuid.NewString(), "").Code)
}

func TestManagerQueueRequiresManagerRole(t *testing.T) {
	env := newTestEnv()
	env.reentryLead(t)

	assert.Equal(t, http.StatusForbidden, do(env.router("AGENT"), http.MethodGet, "/leads/manager-queue", "").Code)

	w := do(env.router("MANAGER"), http.MethodGet, "/leads/manager-queue", "")
	require.Equal(t, http.StatusOK, w.Code)
	queue := decode[[]transport.LeadResponse](t, w)
	require.Len(t, queue, 1)
	assert.True(t, queue[0].NeedsManagerReview)
	assert.Equal(t, 1, queue[0].QueuePriority)
}

func TestManagerDecisionClearsReview(t *testing.T) {
	env := newTestEnv()
	leadID := env.reentryLead(t)
	path := "/leads/" + leadID.String() + "/manager-decision"
	body := `{"decision":"KEEP_AGENT_REENTRY","reasonId":"r-1","justification":"cliente pediu"}`

	assert.Equal(t, http.StatusForbidden, do(env.router("AGENT"), http.MethodPost, path, body).Code)
	assert.Equal(t, http.StatusBadRequest, do(env.router("OWNER"), http.MethodPost, path, `{"decision":"NOPE","reasonId":"r"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(env.router("OWNER"), http.MethodPost, path, `{"decision":"KEEP_CLOSED","reasonId":" "}`).Code)

	w := do(env.router("OWNER"), http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = do(env.router("OWNER"), http.MethodGet, "/leads/manager-queue", "")
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(env.router("OWNER"), http.MethodGet, "/leads/"+leadID.String(), "")
	lead := decode[transport.LeadResponse](t, w)
	assert.False(t, lead.NeedsManagerReview)
	assert.Equal(t, 1, lead.QueuePriority)
}

func TestSendWhatsAppAndTimeline(t *testing.T) {
	env := newTestEnv()
	leadID := env.reentryLead(t)
	r := env.router("AGENT")

	w := do(r, http.MethodPost, "/leads/"+leadID.String()+"/send-whatsapp", `{"mensagem":"Olá Ana"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "5511988887777", env.sender.to)

	w = do(r, http.MethodPost, "/leads/"+leadID.String()+"/events", `{"payloadRaw":{"text":"ligar amanhã"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "crm.note", decode[transport.LeadEventResponse](t, w).Channel)

	w = do(r, http.MethodGet, "/leads/"+leadID.String()+"/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	timeline := decode[[]transport.TimelineEventResponse](t, w)
	require.Len(t, timeline, 4)

	directions := make([]string, len(timeline))
	for i, entry := range timeline {
		directions[i] = entry.Direction
	}
	assert.Equal(t, []string{"in", "in", "out", "out"}, directions)
	assert.Equal(t, "Olá Ana", timeline[2].Text)
	assert.Equal(t, "ligar amanhã", timeline[3].Text)
}

func TestSendWhatsAppErrors(t *testing.T) {
	env := newTestEnv()
	r := env.router("AGENT")

	w := do(r, http.MethodPost, "/leads", `{"nome":"Sem fone"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	noPhone := decode[transport.LeadResponse](t, w)

	w = do(r, http.MethodPost, "/leads/"+noPhone.ID.String()+"/send-whatsapp", `{"text":"oi"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_phone", decode[httpkit.ErrorResponse](t, w).Code)

	leadID := env.reentryLead(t)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/leads/"+leadID.String()+"/send-whatsapp", `{}`).Code)

	env.sender.err = errors.New("whatsapp api returned 400: bad recipient")
	w = do(r, http.MethodPost, "/leads/"+leadID.String()+"/send-whatsapp", `{"message":"oi"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decode[httpkit.ErrorResponse](t, w).Error, "bad recipient")
}

func TestStatusAssignAndScopes(t *testing.T) {
	env := newTestEnv()
	leadID := env.reentryLead(t)
	base := "/leads/" + leadID.String()

	w := do(env.router("AGENT"), http.MethodPatch, base+"/status", `{"status":"EM_CONTATO"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "EM_CONTATO", decode[transport.LeadResponse](t, w).Status)
	assert.Equal(t, http.StatusBadRequest, do(env.router("AGENT"), http.MethodPatch, base+"/status", `{"status":"X"}`).Code)

	body := `{"assignedUserId":"` + env.user.String() + `"}`
	assert.Equal(t, http.StatusForbidden, do(env.router("AGENT"), http.MethodPost, base+"/assign", body).Code)
	assert.Equal(t, http.StatusBadRequest, do(env.router("MANAGER"), http.MethodPost, base+"/assign", `{}`).Code)
	require.Equal(t, http.StatusOK, do(env.router("MANAGER"), http.MethodPost, base+"/assign", body).Code)

	w = do(env.router("AGENT"), http.MethodGet, "/leads/my", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]transport.LeadResponse](t, w), 1)

	w = do(env.router("AGENT"), http.MethodGet, "/leads?status=NOVO", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]transport.LeadResponse](t, w))

	assert.Equal(t, http.StatusForbidden, do(env.router("AGENT"), http.MethodGet, "/leads/branch", "").Code)
	assert.Equal(t, http.StatusOK, do(env.router("OWNER"), http.MethodGet, "/leads/branch", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(env.router("OWNER"), http.MethodGet, "/leads/branch?branchId=x", "").Code)
}
