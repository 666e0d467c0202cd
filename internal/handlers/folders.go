package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skyvault/skyvault/internal/pkg"
	"github.com/skyvault/skyvault/internal/services"
)

// FolderHandler exposes the folder tree over HTTP.
type FolderHandler struct {
	folderService *services.FolderService
}

// NewFolderHandler creates a new folder handler.
func NewFolderHandler(folderService *services.FolderService) *FolderHandler {
	return &FolderHandler{folderService: folderService}
}

// CreateFolderRequest represents a folder creation request body.
type CreateFolderRequest struct {
	Name     string  `json:"name" binding:"required,min=1,max=255"`
	ParentID *string `json:"parentId,omitempty"`
	Color    string  `json:"color"`
	Icon     string  `json:"icon"`
}

// RenameRequest carries the new name for a rename.
type RenameRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
}

// MoveRequest carries the destination for a move. A null parent means
// the root level.
type MoveRequest struct {
	ParentID *string `json:"parentId"`
}

// Create handles POST /folders.
func (h *FolderHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		pkg.HandleError(c, pkg.ErrInvalidInput.WithCause(err))
		return
	}
	parentID, err := optionalID(req.ParentID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}

	folder, err := h.folderService.CreateFolder(c.Request.Context(), userID, &services.CreateFolderRequest{
		Name:     req.Name,
		ParentID: parentID,
		Color:    req.Color,
		Icon:     req.Icon,
	})
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusCreated, "Folder created", folder)
}

// Get handles GET /folders/:id.
func (h *FolderHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	folderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	folder, err := h.folderService.GetFolder(c.Request.Context(), userID, folderID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "Folder retrieved", folder)
}

// Tree handles GET /folders/tree.
func (h *FolderHandler) Tree(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	raw := c.Query("parentId")
	rootID, err := optionalID(&raw)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}

	tree, err := h.folderService.Tree(c.Request.Context(), userID, rootID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "Folder tree retrieved", tree)
}

// Contents handles GET /folders/:id/contents and GET /folders/root.
func (h *FolderHandler) Contents(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	params := pkg.NewPaginationParams(c)

	raw := c.Param("id")
	var folderID *string
	if raw != "" && raw != "root" {
		folderID = &raw
	}
	id, err := optionalID(folderID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}

	contents, err := h.folderService.Contents(c.Request.Context(), userID, id, params)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.PaginatedResponse(c, "Folder contents retrieved", contents,
		pkg.NewPaginationMeta(params, contents.Total))
}

// Rename handles PATCH /folders/:id/rename.
func (h *FolderHandler) Rename(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	folderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		pkg.HandleError(c, pkg.ErrInvalidInput.WithCause(err))
		return
	}

	folder, err := h.folderService.RenameFolder(c.Request.Context(), userID, folderID, req.Name)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "Folder renamed", folder)
}

// Move handles PATCH /folders/:id/move.
func (h *FolderHandler) Move(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	folderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		pkg.HandleError(c, pkg.ErrInvalidInput.WithCause(err))
		return
	}
	parentID, err := optionalID(req.ParentID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}

	folder, err := h.folderService.MoveFolder(c.Request.Context(), userID, folderID, parentID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "Folder moved", folder)
}

// ToggleFavorite handles POST /folders/:id/favorite.
func (h *FolderHandler) ToggleFavorite(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	folderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	folder, err := h.folderService.ToggleFavorite(c.Request.Context(), userID, folderID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "Folder favorite toggled", folder)
}

// Delete handles DELETE /folders/:id. The first call moves the subtree
// to trash; a second call on the trashed folder removes it permanently.
func (h *FolderHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	folderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.folderService.DeleteFolder(c.Request.Context(), userID, folderID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}

	message := "Folder permanently deleted"
	if result.Trashed {
		message = "Folder moved to trash"
	}
	pkg.SuccessResponse(c, http.StatusOK, message, result)
}

// Restore handles POST /folders/:id/restore.
func (h *FolderHandler) Restore(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	folderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	folder, err := h.folderService.RestoreFolder(c.Request.Context(), userID, folderID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "Folder restored", folder)
}

// Trash handles GET /trash.
func (h *FolderHandler) Trash(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	contents, err := h.folderService.ListTrash(c.Request.Context(), userID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "Trash retrieved", contents)
}
