package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skyvault/skyvault/internal/pkg"
	"github.com/skyvault/skyvault/internal/services"
)

// AuthHandler exposes account registration, login, and profile routes.
type AuthHandler struct {
	userService *services.UserService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(userService *services.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		pkg.HandleError(c, pkg.ErrInvalidInput.WithCause(err))
		return
	}

	resp, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusCreated, "Account created", resp)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		pkg.HandleError(c, pkg.ErrInvalidInput.WithCause(err))
		return
	}

	resp, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "Logged in", resp)
}

// Profile handles GET /me.
func (h *AuthHandler) Profile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "Profile retrieved", user)
}

// DeleteAccount handles DELETE /me. Everything the account owns goes
// with it.
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.userService.DeleteAccount(c.Request.Context(), userID); err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "Account deleted", nil)
}
