// Package leads provides the lead intake bounded context module.
// This file defines the module that encapsulates leads setup and route registration.
package leads

import (
	"viacrm_backend/internal/events"
	apphttp "viacrm_backend/internal/http"
	"viacrm_backend/internal/leads/handler"
	"viacrm_backend/internal/leads/repository"
	"viacrm_backend/internal/leads/service"
	"viacrm_backend/platform/logger"
	"viacrm_backend/platform/validator"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the leads module on top of the given store.
func NewModule(store repository.Store, eventBus events.Bus, val *validator.Validator, log *logger.Logger, opts ...service.Option) *Module {
	svc := service.New(store, eventBus, log, opts...)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service exposes the lead service for ingestion and webhook modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the CRM routes under /api/v1/leads.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
}

var _ apphttp.Module = (*Module)(nil)
