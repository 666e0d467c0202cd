package handlers

import (
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skyvault/skyvault/internal/middleware"
	"github.com/skyvault/skyvault/internal/pkg"
)

// requireUser pulls the authenticated user from the context. It only
// fails on routes that forgot the auth middleware.
func requireUser(c *gin.Context) (primitive.ObjectID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		pkg.UnauthorizedResponse(c, "authentication required")
	}
	return userID, ok
}

// pathID parses an ObjectID path parameter.
func pathID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		pkg.HandleError(c, pkg.ErrInvalidInput.WithDetails(map[string]interface{}{
			"param": name,
		}))
		return primitive.NilObjectID, false
	}
	return id, true
}

// optionalID parses a pointer-style ID out of a request body field that
// may be empty or absent.
func optionalID(raw *string) (*primitive.ObjectID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(*raw)
	if err != nil {
		return nil, pkg.ErrInvalidInput.WithDetails(map[string]interface{}{
			"id": *raw,
		})
	}
	return &id, nil
}
