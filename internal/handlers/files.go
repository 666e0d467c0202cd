package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
	"github.com/skyvault/skyvault/internal/repository"
	"github.com/skyvault/skyvault/internal/services"
)

// FileHandler exposes file operations over HTTP.
type FileHandler struct {
	fileService *services.FileService
}

// NewFileHandler creates a new file handler.
func NewFileHandler(fileService *services.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// Upload handles POST /files. The file arrives as multipart form data
// under the "file" field; folderId is an optional form value.
func (h *FileHandler) Upload(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		pkg.HandleError(c, pkg.ErrInvalidInput.WithDetails(map[string]interface{}{
			"message": "missing file field",
		}))
		return
	}

	var folderRaw *string
	if v := c.PostForm("folderId"); v != "" {
		folderRaw = &v
	}
	folderID, err := optionalID(folderRaw)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		pkg.HandleError(c, pkg.ErrFileUploadFailed.WithCause(err))
		return
	}
	defer src.Close()

	file, err := h.fileService.Upload(c.Request.Context(), userID, &services.UploadFileRequest{
		Name:        fileHeader.Filename,
		FolderID:    folderID,
		Size:        fileHeader.Size,
		MimeType:    fileHeader.Header.Get("Content-Type"),
		Description: c.PostForm("description"),
		Body:        src,
	})
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusCreated, "File uploaded", file)
}

// List handles GET /files with filter query parameters.
func (h *FileHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	params := pkg.NewPaginationParams(c)
	filter := repository.FileFilter{Search: params.Search}

	if t := c.Query("type"); t != "" {
		filter.Type = models.FileType(t)
	}
	if v := c.Query("favorite"); v != "" {
		fav := v == "true"
		filter.Favorite = &fav
	}
	trashed := c.Query("trashed") == "true"
	filter.Trashed = &trashed

	files, total, err := h.fileService.ListFiles(c.Request.Context(), userID, filter, params)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.PaginatedResponse(c, "Files retrieved", files, pkg.NewPaginationMeta(params, total))
}

// Recent handles GET /files/recent.
func (h *FileHandler) Recent(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	files, err := h.fileService.RecentFiles(c.Request.Context(), userID, limit)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "Recent files retrieved", files)
}

// Get handles GET /files/:id.
func (h *FileHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	fileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	file, err := h.fileService.GetFile(c.Request.Context(), userID, fileID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "File retrieved", file)
}

// Rename handles PATCH /files/:id/rename.
func (h *FileHandler) Rename(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	fileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		pkg.HandleError(c, pkg.ErrInvalidInput.WithCause(err))
		return
	}

	file, err := h.fileService.RenameFile(c.Request.Context(), userID, fileID, req.Name)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "File renamed", file)
}

// Move handles PATCH /files/:id/move. The body's parentId names the
// destination folder; null moves to the root level.
func (h *FileHandler) Move(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	fileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		pkg.HandleError(c, pkg.ErrInvalidInput.WithCause(err))
		return
	}
	folderID, err := optionalID(req.ParentID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}

	file, err := h.fileService.MoveFile(c.Request.Context(), userID, fileID, folderID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "File moved", file)
}

// ToggleFavorite handles POST /files/:id/favorite.
func (h *FileHandler) ToggleFavorite(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	fileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	file, err := h.fileService.ToggleFavorite(c.Request.Context(), userID, fileID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "File favorite toggled", file)
}

// Delete handles DELETE /files/:id. First call trashes, second call on
// the trashed file removes it permanently and frees quota.
func (h *FileHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	fileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.fileService.DeleteFile(c.Request.Context(), userID, fileID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}

	message := "File permanently deleted"
	if result.Trashed {
		message = "File moved to trash"
	}
	pkg.SuccessResponse(c, http.StatusOK, message, result)
}

// Restore handles POST /files/:id/restore.
func (h *FileHandler) Restore(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	fileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	file, err := h.fileService.RestoreFile(c.Request.Context(), userID, fileID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "File restored", file)
}

// Duplicate handles POST /files/:id/duplicate.
func (h *FileHandler) Duplicate(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	fileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	clone, err := h.fileService.DuplicateFile(c.Request.Context(), userID, fileID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusCreated, "File duplicated", clone)
}
