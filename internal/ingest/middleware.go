package ingest

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"viacrm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderAPIKey carries the shared ingestion key.
	HeaderAPIKey = "X-Api-Key"
	// HeaderTenantID names the tenant the contact belongs to.
	HeaderTenantID = "X-Tenant-Id"

	contextTenantKey = "ingestTenantID"
)

// APIKeyAuthMiddleware validates the X-Api-Key header against the configured key
// and sets the tenant from X-Tenant-Id on the gin context.
func APIKeyAuthMiddleware(apiKey string) gin.HandlerFunc {
	expected := []byte(apiKey)
	return func(c *gin.Context) {
		provided := strings.TrimSpace(c.GetHeader(HeaderAPIKey))
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpkit.ErrorResponse{Error: "missing API key"})
			return
		}
		if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpkit.ErrorResponse{Error: "invalid API key"})
			return
		}

		rawTenant := strings.TrimSpace(c.GetHeader(HeaderTenantID))
		if rawTenant == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, httpkit.ErrorResponse{Error: "missing " + HeaderTenantID})
			return
		}
		tenantID, err := uuid.Parse(rawTenant)
		if err != nil || tenantID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, httpkit.ErrorResponse{Error: "invalid " + HeaderTenantID})
			return
		}

		c.Set(contextTenantKey, tenantID)
		c.Next()
	}
}

func tenantFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(contextTenantKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
