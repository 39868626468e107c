package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"race-photos-backend/internal/logging"
	"race-photos-backend/internal/models"
	"race-photos-backend/internal/services"
)

// maxWebhookBytes bounds the webhook body, matching Stripe's own limit.
const maxWebhookBytes = 65536

type WebhookHandler struct {
	reconciler *services.Reconciler
}

func NewWebhookHandler(reconciler *services.Reconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// HandleStripe godoc
// @Summary     Stripe webhook endpoint
// @Description Receives Stripe events. The Stripe-Signature header is verified against the configured signing secret. Once verified the event is always acknowledged; processing failures are logged.
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Param       Stripe-Signature header string true "Stripe signature"
// @Success     200 {object} models.WebhookAck
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /webhooks/stripe [post]
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to read request body", err)
		return
	}

	result, err := h.reconciler.HandleEvent(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, services.ErrWebhookNotConfigured) {
			logging.FromContext(c.Request.Context()).Error().Msg("Stripe webhook secret is not configured")
			respondError(c, http.StatusInternalServerError, "webhook secret not configured", nil)
			return
		}
		logging.FromContext(c.Request.Context()).Warn().Err(err).Msg("Rejected webhook")
		respondError(c, http.StatusBadRequest, "invalid signature", nil)
		return
	}

	logging.FromContext(c.Request.Context()).Debug().
		Str("event_id", result.EventID).
		Str("event_type", result.EventType).
		Str("outcome", result.Outcome).
		Msg("Webhook handled")
	c.JSON(http.StatusOK, models.WebhookAck{Received: true})
}

// Status godoc
// @Summary     Webhook endpoint health check
// @Tags        webhooks
// @Produce     json
// @Success     200 {object} map[string]string
// @Router      /webhooks/stripe [get]
func (h *WebhookHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "endpoint": "stripe webhook"})
}
