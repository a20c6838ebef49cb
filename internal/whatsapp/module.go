package whatsapp

import (
	apphttp "viacrm_backend/internal/http"
)

// Module is the WhatsApp webhook module implementing http.Module.
type Module struct {
	handler *Handler
}

func NewModule(correlator *Correlator, verifyToken string) *Module {
	return &Module{handler: NewHandler(correlator, verifyToken)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "whatsapp"
}

// RegisterRoutes mounts the public provider webhook.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhooks/whatsapp")
	if ctx.WebhookRateLimiter != nil {
		group.Use(ctx.WebhookRateLimiter.RateLimit())
	}
	group.GET("", m.handler.Verify)
	group.POST("", m.handler.Receive)
}

var _ apphttp.Module = (*Module)(nil)
