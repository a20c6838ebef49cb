package reasons

import (
	apphttp "viacrm_backend/internal/http"
	"viacrm_backend/platform/validator"
)

// Module is the reasons catalog module implementing http.Module.
type Module struct {
	handler *Handler
}

func NewModule(repo Repository, val *validator.Validator) *Module {
	return &Module{handler: NewHandler(NewService(repo), val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "reasons"
}

// RegisterRoutes mounts the catalog under /api/v1/config/manager-reasons.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/config/manager-reasons"))
}

var _ apphttp.Module = (*Module)(nil)
