package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"race-photos-backend/internal/pricing"
)

type Quote struct {
	PhotoCount    int             `json:"photo_count"`
	PricePerPhoto int64           `json:"price_per_photo"`
	TotalAmount   int64           `json:"total_amount"`
	DisplayTotal  string          `json:"display_total"`
	Savings       pricing.Savings `json:"savings"`
	Tiers         []pricing.Tier  `json:"tiers"`
}

// GetPricing godoc
// @Summary     Price quote
// @Description Returns the per-photo price, total and savings for a photo count, plus the full tier table.
// @Tags        pricing
// @Produce     json
// @Param       count query int false "Number of photos" default(1)
// @Success     200 {object} models.APIResponse{data=Quote}
// @Failure     400 {object} models.ErrorResponse
// @Router      /pricing [get]
func GetPricing(c *gin.Context) {
	count := 1
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > pricing.MaxPhotosPerOrder {
			respondError(c, http.StatusBadRequest, "invalid photo count", err)
			return
		}
		count = n
	}

	total := pricing.TotalAmount(count)
	respondOK(c, Quote{
		PhotoCount:    count,
		PricePerPhoto: pricing.PricePerPhoto(count),
		TotalAmount:   total,
		DisplayTotal:  pricing.FormatPrice(total),
		Savings:       pricing.CalculateSavings(count),
		Tiers:         pricing.Tiers(),
	})
}
