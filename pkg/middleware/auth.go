package middleware

import (
	"strings"

	"alertnet/backend/pkg/errors"
	"alertnet/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// JWTAuth validates the bearer token and exposes the caller's user id under
// the "userId" context key. The token is consumed as an opaque identity;
// issuing it is the identity provider's job.
func JWTAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.Error(errors.NewUnauthorizedError("MISSING_TOKEN", "Authorization header required"))
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.Error(errors.NewUnauthorizedError("INVALID_TOKEN", "Token is invalid or expired"))
			c.Abort()
			return
		}

		c.Set("userId", claims.UserID)
		c.Next()
	}
}
