package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/meridian-im/media-admin-api/internal/models"
	appErrors "github.com/meridian-im/media-admin-api/pkg/errors"
	"github.com/meridian-im/media-admin-api/pkg/response"
)

// RequireAdmin rejects callers whose token does not carry the server admin
// flag. It must run after JWT.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if !claims.Admin {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "you are not a server admin"))
			c.Abort()
			return
		}
		c.Next()
	}
}
