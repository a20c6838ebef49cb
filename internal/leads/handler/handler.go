package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"viacrm_backend/internal/leads/domain"
	"viacrm_backend/internal/leads/service"
	"viacrm_backend/internal/leads/transport"
	"viacrm_backend/platform/httpkit"
	"viacrm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid lead id"
	msgInvalidStatus    = "invalid status"

	maxBodyBytes = 1 << 20
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/manager-queue", httpkit.RequireAnyRole(domain.ManagerRoles...), h.ManagerQueue)
	rg.GET("/my", h.MyLeads)
	rg.GET("/branch", h.BranchLeads)
	rg.GET("/:id", h.GetByID)
	rg.GET("/:id/events", h.ListEvents)
	rg.POST("/:id/events", h.CreateEvent)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.POST("/:id/assign", h.Assign)
	rg.POST("/:id/manager-decision", h.ManagerDecision)
	rg.POST("/:id/send-whatsapp", h.SendWhatsApp)
}

func (h *Handler) Create(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Create(c.Request.Context(), tenantID, service.CreateInput{
		Name:   req.Name,
		Phone:  req.Phone,
		Email:  req.Email,
		Origin: req.Origin,
		Note:   req.Note,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.ToLeadResponse(lead))
}

func (h *Handler) List(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	status, ok := statusQuery(c)
	if !ok {
		return
	}

	leads, err := h.svc.List(c.Request.Context(), tenantID, status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponses(leads))
}

func (h *Handler) ManagerQueue(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	leads, err := h.svc.ManagerQueue(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponses(leads))
}

func (h *Handler) MyLeads(c *gin.Context) {
	id, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	status, ok := statusQuery(c)
	if !ok {
		return
	}

	leads, err := h.svc.MyLeads(c.Request.Context(), tenantID, id.UserID(), status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponses(leads))
}

func (h *Handler) BranchLeads(c *gin.Context) {
	id, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	status, ok := statusQuery(c)
	if !ok {
		return
	}

	var branchID *uuid.UUID
	if raw := strings.TrimSpace(c.Query("branchId")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid branchId", nil)
			return
		}
		branchID = &parsed
	}

	leads, err := h.svc.BranchLeads(c.Request.Context(), tenantID, RoleOf(id), branchID, status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponses(leads))
}

func (h *Handler) GetByID(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	leadID, ok := leadIDParam(c)
	if !ok {
		return
	}

	lead, err := h.svc.Get(c.Request.Context(), tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) ListEvents(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	leadID, ok := leadIDParam(c)
	if !ok {
		return
	}

	entries, err := h.svc.Timeline(c.Request.Context(), tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToTimelineResponses(entries))
}

func (h *Handler) CreateEvent(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	leadID, ok := leadIDParam(c)
	if !ok {
		return
	}

	var req transport.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	ev, err := h.svc.AddNote(c.Request.Context(), tenantID, leadID, req.Channel, req.PayloadRaw)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToLeadEventResponse(ev))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	leadID, ok := leadIDParam(c)
	if !ok {
		return
	}

	var req transport.UpdateLeadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.UpdateStatus(c.Request.Context(), tenantID, leadID, domain.LeadStatus(req.Status))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) Assign(c *gin.Context) {
	id, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	leadID, ok := leadIDParam(c)
	if !ok {
		return
	}

	var req transport.AssignLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.AssignedUserID.Set {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	lead, err := h.svc.Assign(c.Request.Context(), tenantID, leadID, RoleOf(id), req.AssignedUserID.Value)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) ManagerDecision(c *gin.Context) {
	id, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	leadID, ok := leadIDParam(c)
	if !ok {
		return
	}

	var req transport.ManagerDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	_, err := h.svc.Decide(c.Request.Context(), service.DecideInput{
		TenantID:      tenantID,
		LeadID:        leadID,
		Decision:      domain.Decision(req.Decision),
		ReasonID:      req.ReasonID,
		Justification: req.Justification,
		ActorID:       id.UserID(),
		ActorRole:     RoleOf(id),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.OKResponse{OK: true})
}

// SendWhatsApp accepts any JSON object and takes the message from the first
// non-blank of message, mensagem, text or body.
func (h *Handler) SendWhatsApp(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	leadID, ok := leadIDParam(c)
	if !ok {
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil || (len(raw) > 0 && !json.Valid(raw)) {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	text := domain.ExtractText(domain.DecodePayload(raw))

	ev, err := h.svc.Send(c.Request.Context(), tenantID, leadID, text)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"ok": true, "event": transport.ToLeadEventResponse(ev)})
}

// RoleOf returns the most privileged lead role held by the caller.
func RoleOf(id httpkit.Identity) domain.Role {
	switch {
	case id.HasRole(string(domain.RoleOwner)):
		return domain.RoleOwner
	case id.HasRole(string(domain.RoleManager)):
		return domain.RoleManager
	default:
		return domain.RoleAgent
	}
}

func leadIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.Nil, false
	}
	return id, true
}

func statusQuery(c *gin.Context) (*domain.LeadStatus, bool) {
	raw := strings.TrimSpace(c.Query("status"))
	if raw == "" {
		return nil, true
	}
	status, ok := domain.ParseLeadStatus(raw)
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidStatus, nil)
		return nil, false
	}
	return &status, true
}
