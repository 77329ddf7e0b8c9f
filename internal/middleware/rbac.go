package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/vidyahq/fees-api/internal/models"
	appErrors "github.com/vidyahq/fees-api/pkg/errors"
)

// RequireRoles restricts a route to the given roles. It must run after
// JWT, which is what puts the claims on the context.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			abortWith(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			abortWith(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}

// CurrentUser returns the claims stored by JWT, or nil when the route
// is unauthenticated.
func CurrentUser(c *gin.Context) *models.JWTClaims {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*models.JWTClaims)
	return claims
}
