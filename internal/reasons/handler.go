package reasons

import (
	"net/http"
	"time"

	"viacrm_backend/internal/leads/domain"
	leadhandler "viacrm_backend/internal/leads/handler"
	"viacrm_backend/platform/httpkit"
	"viacrm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CreateReasonRequest struct {
	Label     string `json:"label" validate:"required,notblank,max=200"`
	SortOrder int    `json:"sortOrder" validate:"gte=0"`
}

type UpdateReasonRequest struct {
	Label     *string `json:"label,omitempty" validate:"omitempty,notblank,max=200"`
	Active    *bool   `json:"active,omitempty"`
	SortOrder *int    `json:"sortOrder,omitempty" validate:"omitempty,gte=0"`
}

type ReasonResponse struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenantId"`
	Label     string    `json:"label"`
	Active    bool      `json:"active"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"criadoEm"`
	UpdatedAt time.Time `json:"atualizadoEm"`
}

func toResponse(r domain.DecisionReason) ReasonResponse {
	return ReasonResponse{
		ID:        r.ID,
		TenantID:  r.TenantID,
		Label:     r.Label,
		Active:    r.Active,
		SortOrder: r.SortOrder,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type Handler struct {
	svc *Service
	val *validator.Validator
}

func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.PATCH("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}

// List returns the catalog ordered by sort order. ?active=true hides inactive entries.
func (h *Handler) List(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	items, err := h.svc.List(c.Request.Context(), tenantID, c.Query("active") == "true")
	if httpkit.HandleError(c, err) {
		return
	}

	resp := make([]ReasonResponse, len(items))
	for i, item := range items {
		resp[i] = toResponse(item)
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Create(c *gin.Context) {
	identity, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	var req CreateReasonRequest
	if !h.bind(c, &req) {
		return
	}

	reason, err := h.svc.Create(c.Request.Context(), tenantID, leadhandler.RoleOf(identity), CreateInput{
		Label:     req.Label,
		SortOrder: req.SortOrder,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toResponse(reason))
}

func (h *Handler) Update(c *gin.Context) {
	identity, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	id, ok := reasonIDParam(c)
	if !ok {
		return
	}

	var req UpdateReasonRequest
	if !h.bind(c, &req) {
		return
	}

	reason, err := h.svc.Update(c.Request.Context(), tenantID, id, leadhandler.RoleOf(identity), UpdateInput{
		Label:     req.Label,
		Active:    req.Active,
		SortOrder: req.SortOrder,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(reason))
}

func (h *Handler) Delete(c *gin.Context) {
	identity, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	id, ok := reasonIDParam(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.svc.Delete(c.Request.Context(), tenantID, id, leadhandler.RoleOf(identity))) {
		return
	}
	httpkit.OK(c, gin.H{"ok": true})
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return false
	}
	return true
}

func reasonIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid reason id", nil)
		return uuid.UUID{}, false
	}
	return id, true
}
