package handlers

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/skyvault/skyvault/internal/pkg"
	"github.com/skyvault/skyvault/internal/services"
)

// DownloadHandler streams file content to its owner.
type DownloadHandler struct {
	fileService *services.FileService
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(fileService *services.FileService) *DownloadHandler {
	return &DownloadHandler{fileService: fileService}
}

// Download handles GET /files/:id/download.
func (h *DownloadHandler) Download(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	fileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	file, body, err := h.fileService.Download(c.Request.Context(), userID, fileID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	defer body.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Header("Content-Type", file.MimeType)
	if file.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(file.Size, 10))
	}
	io.Copy(c.Writer, body)
}
