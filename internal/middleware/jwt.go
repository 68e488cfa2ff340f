package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"HoldemTable/internal/auth"
)

// PlayerIDKey is the gin context key holding the authenticated player id.
const PlayerIDKey = "playerID"

// JwtAuthMiddleware resolves "Authorization: Bearer <jwt>". Browsers cannot
// set headers on a websocket upgrade, so a token query parameter is also accepted.
func JwtAuthMiddleware(provider auth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		playerID, err := provider.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(PlayerIDKey, playerID)
		c.Next()
	}
}

func bearer(header string) string {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
