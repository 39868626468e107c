package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"race-photos-backend/internal/models"
	"race-photos-backend/internal/services"
)

type EmailHandler struct {
	delivery *services.DeliveryService
}

func NewEmailHandler(delivery *services.DeliveryService) *EmailHandler {
	return &EmailHandler{delivery: delivery}
}

// SendPhotos godoc
// @Summary     Email purchased photos
// @Description Sends the delivery email with a zip of the payment's photos. A payment that was already emailed is skipped unless force_resend is set.
// @Tags        email
// @Accept      json
// @Produce     json
// @Param       request body models.SendEmailRequest true "Payment"
// @Success     200 {object} models.APIResponse{data=services.DeliveryResult}
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /email/photos [post]
func (h *EmailHandler) SendPhotos(c *gin.Context) {
	var req models.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := h.delivery.Send(c.Request.Context(), uuid.MustParse(req.PaymentID), req.ForceResend)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, result)
}
