package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skyvault/skyvault/internal/pkg"
	"github.com/skyvault/skyvault/internal/services"
)

// ShareHandler exposes share link management and the public resolve
// endpoint.
type ShareHandler struct {
	shareService *services.ShareService
}

// NewShareHandler creates a new share handler.
func NewShareHandler(shareService *services.ShareService) *ShareHandler {
	return &ShareHandler{shareService: shareService}
}

// ShareFileRequest represents a share request body.
type ShareFileRequest struct {
	ExpiresInDays int `json:"expiresInDays" binding:"omitempty,min=1,max=365"`
}

// Share handles POST /files/:id/share.
func (h *ShareHandler) Share(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	fileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req ShareFileRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		pkg.HandleError(c, pkg.ErrInvalidInput.WithCause(err))
		return
	}

	link, err := h.shareService.ShareFile(c.Request.Context(), userID, fileID, req.ExpiresInDays)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusCreated, "Share link created", link)
}

// Revoke handles DELETE /files/:id/share.
func (h *ShareHandler) Revoke(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	fileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.shareService.RevokeShare(c.Request.Context(), userID, fileID); err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "Share link revoked", nil)
}

// Resolve handles GET /shared/:token. No authentication; the token is
// the capability.
func (h *ShareHandler) Resolve(c *gin.Context) {
	view, err := h.shareService.ResolveShare(c.Request.Context(), c.Param("token"))
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "Shared file retrieved", view)
}
