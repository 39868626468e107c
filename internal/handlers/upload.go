package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"race-photos-backend/internal/models"
	"race-photos-backend/internal/services"
)

// maxUploadMemory is held in memory while parsing the multipart form; larger
// forms spill to disk.
const maxUploadMemory = 32 << 20

type AdminHandler struct {
	admin *services.AdminService
}

func NewAdminHandler(admin *services.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// Upload godoc
// @Summary     Upload photos for a bib
// @Description Stores each image and records it as an active, selected photo of the bib. Files are processed independently; failures are listed in the response.
// @Tags        admin
// @Accept      multipart/form-data
// @Produce     json
// @Param       bib_number formData string true "Bib number"
// @Param       photos     formData file   true "Images (multiple files allowed)"
// @Success     200 {object} models.APIResponse{data=services.UploadResult}
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /admin/photos/upload [post]
func (h *AdminHandler) Upload(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(c, http.StatusBadRequest, "failed to parse multipart form", err)
		return
	}
	form := c.Request.MultipartForm

	bib, err := models.ParseBibNumber(c.PostForm("bib_number"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid bib number", err)
		return
	}

	headers := form.File["photos"]
	if len(headers) == 0 {
		respondError(c, http.StatusBadRequest, services.ErrNoFiles.Error(), nil)
		return
	}

	files := make([]services.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "failed to read file", err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(c, http.StatusBadRequest, "failed to read file", err)
			return
		}
		files = append(files, services.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	result, err := h.admin.Upload(c.Request.Context(), bib, files)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, result)
}

// DeletePhoto godoc
// @Summary     Purge one photo
// @Description Deletes the photo with its selections, access rows and order items, then removes the stored object.
// @Tags        admin
// @Produce     json
// @Param       photo_id path string true "Photo ID (UUID)"
// @Success     200 {object} models.APIResponse{data=services.PurgeResult}
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /admin/photos/{photo_id} [delete]
func (h *AdminHandler) DeletePhoto(c *gin.Context) {
	id, err := uuid.Parse(c.Param("photo_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid photo id", err)
		return
	}

	result, err := h.admin.DeletePhoto(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, result)
}

// DeleteBib godoc
// @Summary     Purge a bib
// @Description Deletes every photo, selection, access row, survey and payment of the bib, then the stored objects.
// @Tags        admin
// @Produce     json
// @Param       bib path string true "Bib number"
// @Success     200 {object} models.APIResponse{data=services.PurgeResult}
// @Failure     404 {object} models.ErrorResponse
// @Router      /admin/bibs/{bib} [delete]
func (h *AdminHandler) DeleteBib(c *gin.Context) {
	bib, ok := bibParam(c)
	if !ok {
		return
	}

	result, err := h.admin.DeleteBib(c.Request.Context(), bib)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, result)
}

// ListBibs godoc
// @Summary     Per-bib summary
// @Tags        admin
// @Produce     json
// @Success     200 {object} models.APIResponse{data=[]models.BibSummary}
// @Router      /admin/bibs [get]
func (h *AdminHandler) ListBibs(c *gin.Context) {
	bibs, err := h.admin.ListBibs(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if bibs == nil {
		bibs = []models.BibSummary{}
	}
	respondOK(c, bibs)
}
