package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"race-photos-backend/internal/logging"
	"race-photos-backend/internal/services"
)

type FilesHandler struct {
	downloads *services.DownloadService
}

func NewFilesHandler(downloads *services.DownloadService) *FilesHandler {
	return &FilesHandler{downloads: downloads}
}

// Download godoc
// @Summary     Download one unlocked photo
// @Description Streams the high-resolution photo as an attachment. Without photo_id the first unlocked photo is returned. When the image cannot be fetched the client is redirected to its signed URL.
// @Tags        downloads
// @Produce     image/jpeg
// @Param       bib      path  string true  "Bib number"
// @Param       photo_id query string false "Photo ID (UUID)"
// @Success     200 {file} binary
// @Success     302
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /download/{bib} [get]
func (h *FilesHandler) Download(c *gin.Context) {
	bib, ok := bibParam(c)
	if !ok {
		return
	}

	var photoID uuid.UUID
	if raw := c.Query("photo_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid photo id", err)
			return
		}
		photoID = id
	}

	file, err := h.downloads.Single(c.Request.Context(), bib, photoID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if file.Data == nil {
		c.Redirect(http.StatusFound, file.RedirectURL)
		return
	}

	if h.write(c, file.Filename, file.ContentType, file.Data) {
		h.downloads.ConfirmDownloads(c.Request.Context(), "single", file.AccessIDs)
	}
}

// DownloadZip godoc
// @Summary     Download every unlocked photo as a zip
// @Description Photos that cannot be fetched are left out of the archive. Fails only when none can be fetched.
// @Tags        downloads
// @Produce     application/zip
// @Param       bib path string true "Bib number"
// @Success     200 {file} binary
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /download/{bib}/zip [get]
func (h *FilesHandler) DownloadZip(c *gin.Context) {
	bib, ok := bibParam(c)
	if !ok {
		return
	}

	archive, err := h.downloads.Zip(c.Request.Context(), bib)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.Header("X-Photos-Included", strconv.Itoa(archive.Included))
	c.Header("X-Photos-Skipped", strconv.Itoa(archive.Skipped))
	if h.write(c, archive.Filename, "application/zip", archive.Data) {
		h.downloads.ConfirmDownloads(c.Request.Context(), "zip", archive.AccessIDs)
	}
}

// write sends data as an attachment and reports whether every byte reached
// the connection.
func (h *FilesHandler) write(c *gin.Context, filename, contentType string, data []byte) bool {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", contentType)
	c.Header("Content-Length", strconv.Itoa(len(data)))
	c.Status(http.StatusOK)

	n, err := c.Writer.Write(data)
	if err != nil || n != len(data) {
		logging.FromContext(c.Request.Context()).Warn().Err(err).Str("filename", filename).Msg("Download interrupted")
		return false
	}
	return true
}
