package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"race-photos-backend/internal/models"
	"race-photos-backend/internal/services"
)

type PhotosHandler struct {
	gallery    *services.GalleryService
	selections *services.SelectionService
	freshness  *services.URLFreshness
}

func NewPhotosHandler(gallery *services.GalleryService, selections *services.SelectionService, freshness *services.URLFreshness) *PhotosHandler {
	return &PhotosHandler{
		gallery:    gallery,
		selections: selections,
		freshness:  freshness,
	}
}

// GetPhotos godoc
// @Summary     Photos for a bib number
// @Description Returns the bib's photos with access state, current selection and pricing tiers. High-resolution URLs are only included for unlocked photos.
// @Tags        photos
// @Produce     json
// @Param       bib path string true "Bib number"
// @Success     200 {object} models.APIResponse{data=services.Gallery}
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /photos/{bib} [get]
func (h *PhotosHandler) GetPhotos(c *gin.Context) {
	bib, ok := bibParam(c)
	if !ok {
		return
	}

	gallery, err := h.gallery.Get(c.Request.Context(), bib)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if gallery.Status == services.GalleryNotFound {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: services.ErrBibNotFound.Error()})
		return
	}
	respondOK(c, gallery)
}

// SetSelection godoc
// @Summary     Select or deselect one photo
// @Tags        selections
// @Accept      json
// @Produce     json
// @Param       bib     path string                     true "Bib number"
// @Param       request body models.SetSelectionRequest true "Selection"
// @Success     200 {object} models.APIResponse{data=services.SelectionSummary}
// @Failure     400 {object} models.ErrorResponse
// @Router      /photos/{bib}/selections [post]
func (h *PhotosHandler) SetSelection(c *gin.Context) {
	bib, ok := bibParam(c)
	if !ok {
		return
	}

	var req models.SetSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	summary, err := h.selections.SetSelected(c.Request.Context(), bib, uuid.MustParse(req.PhotoID), *req.IsSelected)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, summary)
}

// ToggleSelection godoc
// @Summary     Toggle one photo's selection
// @Tags        selections
// @Accept      json
// @Produce     json
// @Param       bib     path string                        true "Bib number"
// @Param       request body models.ToggleSelectionRequest true "Photo"
// @Success     200 {object} models.APIResponse{data=services.SelectionSummary}
// @Failure     400 {object} models.ErrorResponse
// @Router      /photos/{bib}/selections/toggle [post]
func (h *PhotosHandler) ToggleSelection(c *gin.Context) {
	bib, ok := bibParam(c)
	if !ok {
		return
	}

	var req models.ToggleSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	summary, err := h.selections.Toggle(c.Request.Context(), bib, uuid.MustParse(req.PhotoID))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, summary)
}

// ReplaceSelection godoc
// @Summary     Replace the whole selection
// @Description Selects exactly the given photos. Passing select_all=true selects every active photo of the bib instead.
// @Tags        selections
// @Accept      json
// @Produce     json
// @Param       bib        path  string                         true  "Bib number"
// @Param       select_all query bool                           false "Select every photo"
// @Param       request    body  models.ReplaceSelectionRequest false "Selected photos"
// @Success     200 {object} models.APIResponse{data=services.SelectionSummary}
// @Failure     400 {object} models.ErrorResponse
// @Router      /photos/{bib}/selections [put]
func (h *PhotosHandler) ReplaceSelection(c *gin.Context) {
	bib, ok := bibParam(c)
	if !ok {
		return
	}

	var (
		summary *services.SelectionSummary
		err     error
	)
	if c.Query("select_all") == "true" {
		summary, err = h.selections.SelectAll(c.Request.Context(), bib)
	} else {
		var req models.ReplaceSelectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request body", err)
			return
		}
		ids, ok := parseUUIDs(c, req.SelectedPhotoIDs)
		if !ok {
			return
		}
		summary, err = h.selections.ReplaceSelection(c.Request.Context(), bib, ids)
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, summary)
}

// ClearSelection godoc
// @Summary     Deselect every photo
// @Tags        selections
// @Produce     json
// @Param       bib path string true "Bib number"
// @Success     200 {object} models.APIResponse{data=services.SelectionSummary}
// @Router      /photos/{bib}/selections [delete]
func (h *PhotosHandler) ClearSelection(c *gin.Context) {
	bib, ok := bibParam(c)
	if !ok {
		return
	}

	summary, err := h.selections.DeselectAll(c.Request.Context(), bib)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, summary)
}

// RefreshURL godoc
// @Summary     Re-sign a photo's storage URLs
// @Tags        photos
// @Accept      json
// @Produce     json
// @Param       request body models.RefreshURLRequest true "Photo"
// @Success     200 {object} models.APIResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /photos/refresh-url [post]
func (h *PhotosHandler) RefreshURL(c *gin.Context) {
	var req models.RefreshURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	photo, err := h.freshness.RefreshByID(c.Request.Context(), uuid.MustParse(req.PhotoID))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{
		"photo_id":      photo.ID,
		"preview_url":   photo.PreviewURL,
		"watermark_url": photo.WatermarkURL,
		"updated_at":    photo.UpdatedAt,
	})
}
