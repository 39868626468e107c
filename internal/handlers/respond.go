// Package handlers exposes the storefront over HTTP.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"race-photos-backend/internal/logging"
	"race-photos-backend/internal/models"
	"race-photos-backend/internal/services"
)

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: data})
}

func respondError(c *gin.Context, status int, msg string, err error) {
	resp := models.ErrorResponse{Error: msg}
	if err != nil {
		resp.Message = err.Error()
	}
	c.JSON(status, resp)
}

// respondServiceError maps a service error category onto a status code.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrSecurity):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrUpstream):
		logging.FromContext(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("Upstream failure")
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "upstream service failed", Message: err.Error()})
	default:
		logging.FromContext(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
	}
}

// bibParam parses the :bib path parameter, writing a 400 when it is invalid.
func bibParam(c *gin.Context) (models.BibNumber, bool) {
	bib, err := models.ParseBibNumber(c.Param("bib"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid bib number", err)
		return "", false
	}
	return bib, true
}

// parseUUIDs converts validated string ids. Binding has already checked the
// format, so a failure here is still reported as a bad request.
func parseUUIDs(c *gin.Context, raw []string) ([]uuid.UUID, bool) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid photo id", err)
			return nil, false
		}
		out = append(out, id)
	}
	return out, true
}
