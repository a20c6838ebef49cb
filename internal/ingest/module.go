// Package ingest provides the external contact intake surface: site forms,
// site widgets and ad-platform lead webhooks authenticated by a shared API key.
package ingest

import (
	apphttp "viacrm_backend/internal/http"
	"viacrm_backend/internal/leads/domain"
)

// Module is the ingest bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	apiKey  string
}

func NewModule(ingester Ingester, apiKey string) *Module {
	return &Module{handler: NewHandler(ingester), apiKey: apiKey}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "ingest"
}

// RegisterRoutes mounts the intake endpoints on /api/v1 behind the API key guard.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("")
	if ctx.WebhookRateLimiter != nil {
		group.Use(ctx.WebhookRateLimiter.RateLimit())
	}
	group.Use(APIKeyAuthMiddleware(m.apiKey))

	group.POST("/ingest/form", m.handler.Channel(domain.ChannelForm))
	group.POST("/ingest/site", m.handler.Channel(domain.ChannelSite))
	group.POST("/webhooks/meta/leads", m.handler.Channel(domain.ChannelMetaLeads))
	group.POST("/webhooks/whatsapp/ingest", m.handler.Channel(domain.ChannelWhatsApp))
}

var _ apphttp.Module = (*Module)(nil)
