package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"race-photos-backend/internal/models"
	"race-photos-backend/internal/services"
)

type OrdersHandler struct {
	checkout *services.CheckoutService
}

func NewOrdersHandler(checkout *services.CheckoutService) *OrdersHandler {
	return &OrdersHandler{checkout: checkout}
}

// CreateCheckout godoc
// @Summary     Start checkout
// @Description Creates a hosted Stripe Checkout session for the selected photos and records a pending payment. The bib must have completed the survey.
// @Tags        checkout
// @Accept      json
// @Produce     json
// @Param       request body models.CheckoutRequest true "Checkout"
// @Success     200 {object} models.APIResponse{data=services.CheckoutResult}
// @Failure     400 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /checkout [post]
func (h *OrdersHandler) CreateCheckout(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	bib, err := models.ParseBibNumber(req.BibNumber)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid bib number", err)
		return
	}
	ids, ok := parseUUIDs(c, req.SelectedPhotoIDs)
	if !ok {
		return
	}

	result, err := h.checkout.Create(c.Request.Context(), bib, ids)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, result)
}

// GetPaymentBySession godoc
// @Summary     Payment status for a checkout session
// @Description Used by the success page while it waits for the webhook to unlock the photos.
// @Tags        checkout
// @Produce     json
// @Param       session_id path string true "Stripe Checkout session id"
// @Success     200 {object} models.APIResponse{data=models.Payment}
// @Failure     404 {object} models.ErrorResponse
// @Router      /payments/session/{session_id} [get]
func (h *OrdersHandler) GetPaymentBySession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		respondError(c, http.StatusBadRequest, "missing session id", nil)
		return
	}

	payment, err := h.checkout.PaymentBySession(c.Request.Context(), sessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, payment)
}
