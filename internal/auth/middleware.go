package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyAccountAddr is the gin context key for the caller address.
	ContextKeyAccountAddr = "authAccountAddr"
)

// Middleware extracts and validates the API key from the request.
// Sets authAccountAddr in context if valid.
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("Authorization")
		if apiKey == "" {
			apiKey = c.GetHeader("X-API-Key")
		}

		if apiKey != "" {
			key, err := m.ValidateKey(c.Request.Context(), apiKey)
			if err == nil {
				c.Set(ContextKeyAccountAddr, key.Address)
			}
		}

		c.Next()
	}
}

// RequireAuth rejects requests without a resolved caller identity.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextKeyAccountAddr) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "API key required. Include 'Authorization: Bearer sk_...' header.",
			})
			return
		}
		c.Next()
	}
}

// CallerAddress returns the authenticated account address, if any.
func CallerAddress(c *gin.Context) string {
	return c.GetString(ContextKeyAccountAddr)
}
