package ingest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"viacrm_backend/internal/leads/domain"
	"viacrm_backend/internal/leads/service"
	"viacrm_backend/internal/leads/transport"
	"viacrm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	maxBodyBytes    = 1 << 20
	maxFormMemBytes = 1 << 20
)

// Ingester is the part of the lead service the ingest endpoints need.
type Ingester interface {
	Ingest(ctx context.Context, tenantID uuid.UUID, channel domain.Channel, payload json.RawMessage) (service.IngestResult, error)
}

// Handler serves the external contact intake endpoints.
type Handler struct {
	ingester Ingester
}

func NewHandler(ingester Ingester) *Handler {
	return &Handler{ingester: ingester}
}

// Channel returns a handler that ingests the request body on the given channel.
func (h *Handler) Channel(channel domain.Channel) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := tenantFromContext(c)
		if !ok {
			httpkit.Error(c, http.StatusUnauthorized, "missing tenant context", nil)
			return
		}

		payload, ok := readPayload(c)
		if !ok {
			return
		}

		result, err := h.ingester.Ingest(c.Request.Context(), tenantID, channel, payload)
		if httpkit.HandleError(c, err) {
			return
		}

		httpkit.OK(c, transport.ToIngestResponse(result.Lead, result.Event, result.IsReentry))
	}
}

// readPayload accepts a JSON object or url-encoded/multipart form fields and
// returns a JSON object. An empty body ingests as {}.
func readPayload(c *gin.Context) (json.RawMessage, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	switch c.ContentType() {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		fields, err := collectFormFields(c)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "unable to parse form data", nil)
			return nil, false
		}
		raw, err := json.Marshal(fields)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "unable to parse form data", nil)
			return nil, false
		}
		return raw, true
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unable to read body", nil)
		return nil, false
	}
	if len(body) == 0 {
		return json.RawMessage(`{}`), true
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(body, &object); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "body must be a JSON object", nil)
		return nil, false
	}
	return body, true
}

func collectFormFields(c *gin.Context) (map[string]string, error) {
	if c.ContentType() == "multipart/form-data" {
		if err := c.Request.ParseMultipartForm(maxFormMemBytes); err != nil {
			return nil, err
		}
	} else if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}

	fields := make(map[string]string)
	if c.Request.MultipartForm != nil {
		for key, values := range c.Request.MultipartForm.Value {
			if len(values) > 0 {
				fields[key] = values[0]
			}
		}
	}
	for key, values := range c.Request.PostForm {
		if _, exists := fields[key]; !exists && len(values) > 0 {
			fields[key] = values[0]
		}
	}
	return fields, nil
}
