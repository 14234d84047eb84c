package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-events-api/internal/models"
	"github.com/noah-isme/school-events-api/internal/service"
	appErrors "github.com/noah-isme/school-events-api/pkg/errors"
	"github.com/noah-isme/school-events-api/pkg/response"
)

// RequireRoles lets the request through only when the caller's resolved role is allowed.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		claims, ok := value.(*models.JWTClaims)
		if !exists || !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[service.ResolveRole(claims)]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
