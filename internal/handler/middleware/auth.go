package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	jwtpkg "mysbind/userhub/pkg/jwt"
	"mysbind/userhub/pkg/response"
)

const (
	ContextKeyUserClaims = "user_claims"
	ContextKeyUserKey    = "user_key"
)

// JWTAuth accepts a Bearer access token and stores its claims and subject
// (the user key) in the context.
func JWTAuth(jwtManager *jwtpkg.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			response.Unauthorized(c, "missing or malformed authorization header")
			c.Abort()
			return
		}

		claims, err := jwtManager.Validate(strings.TrimSpace(token))
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		if claims.TokenType != jwtpkg.TokenTypeAccess {
			response.Unauthorized(c, "invalid token type")
			c.Abort()
			return
		}

		c.Set(ContextKeyUserClaims, claims)
		c.Set(ContextKeyUserKey, claims.Subject)
		c.Next()
	}
}
