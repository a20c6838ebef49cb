package whatsapp

import (
	"crypto/subtle"
	"io"
	"net/http"

	"viacrm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

const maxWebhookBytes = 1 << 20

// Handler serves the provider webhook.
type Handler struct {
	correlator  *Correlator
	verifyToken string
}

func NewHandler(correlator *Correlator, verifyToken string) *Handler {
	return &Handler{correlator: correlator, verifyToken: verifyToken}
}

// Verify answers the subscription handshake by echoing hub.challenge.
// GET /api/v1/webhooks/whatsapp
func (h *Handler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")

	if mode != "subscribe" || h.verifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		c.Status(http.StatusForbidden)
		return
	}

	c.String(http.StatusOK, c.Query("hub.challenge"))
}

// Receive processes a message delivery.
// POST /api/v1/webhooks/whatsapp
func (h *Handler) Receive(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unable to read body", nil)
		return
	}

	result, err := h.correlator.Receive(c.Request.Context(), raw)
	if httpkit.HandleError(c, err) {
		return
	}

	if result.Ignored {
		httpkit.OK(c, gin.H{"ok": true, "ignored": true})
		return
	}
	httpkit.OK(c, gin.H{"ok": true, "processed": result.Processed, "failed": result.Failed})
}
