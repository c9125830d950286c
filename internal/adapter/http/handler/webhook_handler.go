package handler

import (
	"io"

	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderPaystackSignature carries the HMAC-SHA512 of the raw body.
const HeaderPaystackSignature = "x-paystack-signature"

// WebhookHandler receives payment gateway callbacks.
type WebhookHandler struct {
	webhookSvc ports.WebhookService
}

func NewWebhookHandler(webhookSvc ports.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// Paystack handles POST /api/v1/webhooks/paystack. The signature covers the
// exact bytes received, so the body is read raw and passed on even when empty.
func (h *WebhookHandler) Paystack(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, bindError(err))
		return
	}

	if err := h.webhookSvc.HandlePaystack(c.Request.Context(), payload, c.GetHeader(HeaderPaystackSignature)); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"received": true})
}
