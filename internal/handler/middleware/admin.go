package middleware

import (
	"github.com/gin-gonic/gin"

	jwtpkg "mysbind/userhub/pkg/jwt"
	"mysbind/userhub/pkg/response"
)

// AdminAuth checks that the authenticated user key is in the admin list.
// Must be used after JWTAuth middleware.
func AdminAuth(adminUserKeys []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(adminUserKeys))
	for _, key := range adminUserKeys {
		if key != "" {
			allowed[key] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		claimsVal, exists := c.Get(ContextKeyUserClaims)
		if !exists {
			response.Unauthorized(c, "missing authentication")
			c.Abort()
			return
		}
		claims, ok := claimsVal.(*jwtpkg.Claims)
		if !ok {
			response.Unauthorized(c, "invalid claims")
			c.Abort()
			return
		}

		if _, isAdmin := allowed[claims.Subject]; !isAdmin {
			response.Forbidden(c, "admin access required")
			c.Abort()
			return
		}

		c.Next()
	}
}
