package middlewares

import (
	"net/http"
	"strings"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/gin-gonic/gin"
)

// RevokedTokenKey is the redis key marking a bearer token as logged out.
func RevokedTokenKey(token string) string {
	return "RevokedToken:" + token
}

// SessionMiddleware rejects bearer tokens revoked in redis. Without redis every
// token is accepted until it expires.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.Request.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			c.Next()
			return
		}
		_, revoked, err := config.GetRedisValue(c.Request.Context(), RevokedTokenKey(token))
		if err != nil {
			config.LogError(config.GetLogger(), "middlewares", "SessionMiddleware", "redis read", nil, err)
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
