package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/skyvault/skyvault/internal/pkg"
)

// Recovery turns panics into 500 responses instead of dropped
// connections.
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "http").Logger()

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Msg("panic recovered")

				if !c.Writer.Written() {
					pkg.ErrorResponse(c, http.StatusInternalServerError,
						pkg.ErrInternalServer.Code, pkg.ErrInternalServer.Message, nil)
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
