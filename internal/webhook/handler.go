package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"leadrouter_backend/platform/httpkit"
)

// Handler receives Evolution API webhook calls.
type Handler struct {
	svc *Service
}

// NewHandler creates a new webhook handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers webhook routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/whatsapp", h.Receive)
}

// Receive handles a messages.upsert event. The provider retries on non-2xx,
// so engine failures are logged and acknowledged rather than surfaced.
func (h *Handler) Receive(c *gin.Context) {
	var payload Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}

	if payload.Event != "" && payload.Event != "messages.upsert" {
		httpkit.OK(c, gin.H{"status": string(OutcomeIgnored)})
		return
	}

	outcome, err := h.svc.HandleMessage(c.Request.Context(), payload)
	if err != nil {
		h.svc.log.Error("webhook processing",
			"message_id", payload.Data.Key.ID,
			"outcome", string(outcome),
			"error", err,
		)
	}
	httpkit.OK(c, gin.H{"status": string(outcome)})
}
