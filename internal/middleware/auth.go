package middleware

import (
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skyvault/skyvault/internal/pkg"
)

const (
	// ContextUserID is the gin context key holding the authenticated
	// user's ID.
	ContextUserID = "user_id"

	// ContextUserEmail is the gin context key holding the authenticated
	// user's email.
	ContextUserEmail = "user_email"
)

// Auth verifies the bearer token and stores the caller's identity on the
// request context.
func Auth(jwt *pkg.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := pkg.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if token == "" {
			pkg.UnauthorizedResponse(c, "missing or malformed authorization header")
			c.Abort()
			return
		}

		claims, err := jwt.VerifyToken(token)
		if err != nil {
			pkg.UnauthorizedResponse(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}

// UserID extracts the authenticated user ID set by Auth. The bool is
// false on unauthenticated requests.
func UserID(c *gin.Context) (primitive.ObjectID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := v.(primitive.ObjectID)
	return id, ok
}
