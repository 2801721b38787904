package auth

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

const ownerIDKey = "owner_id"

// AuthMiddleware validates JWT tokens and protects operator routes
func AuthMiddleware(logger *log.Logger) gin.HandlerFunc {
	logger = logger.WithPrefix("auth")

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			return
		}

		// Extract token from "Bearer <token>" format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format. Expected: Bearer <token>",
			})
			return
		}

		claims, err := ValidateToken(parts[1])
		if err != nil {
			logger.Debug("Token validation failed", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(ownerIDKey, claims.OwnerID())
		c.Next()
	}
}

// GetOwnerID retrieves the operator id from the context
func GetOwnerID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ownerIDKey)
	if !exists {
		return "", false
	}

	id, ok := v.(string)
	return id, ok && id != ""
}
