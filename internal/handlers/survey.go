package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"race-photos-backend/internal/models"
	"race-photos-backend/internal/services"
)

type SurveyHandler struct {
	surveys *services.SurveyService
}

func NewSurveyHandler(surveys *services.SurveyService) *SurveyHandler {
	return &SurveyHandler{surveys: surveys}
}

// Submit godoc
// @Summary     Submit the pre-purchase survey
// @Description Records the runner's details and answers for a bib. A bib can only be surveyed once; repeat submissions return the existing response with already_completed=true.
// @Tags        survey
// @Accept      json
// @Produce     json
// @Param       request body models.SurveyRequest true "Survey"
// @Success     200 {object} models.APIResponse{data=services.SurveyResult}
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /survey [post]
func (h *SurveyHandler) Submit(c *gin.Context) {
	var req models.SurveyRequest
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

	result, err := h.surveys.Submit(c.Request.Context(), services.SurveySubmission{
		BibNumber:             bib,
		PhotoIDs:              ids,
		RunnerName:            req.RunnerName,
		RunnerEmail:           req.RunnerEmail,
		SocialMediaPreference: req.SocialMediaPreference,
		WaitingStopsBuying:    req.WaitingStopsBuying,
		MarketingConsent:      req.MarketingConsent,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{
		"survey":            result.Response,
		"already_completed": result.AlreadyCompleted,
		"warnings":          result.Warnings,
	})
}
