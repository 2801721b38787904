package handlers

import (
	"net/http"

	"bonus-hunt/internal/apperr"
	"bonus-hunt/internal/auth"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError writes a domain error as {"error", "code"} with the status
// that matches its failure family.
func respondError(c *gin.Context, logger *log.Logger, err error) {
	code := apperr.CodeOf(err)
	status := code.HTTPStatus()

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}

	c.AbortWithStatusJSON(status, gin.H{
		"error": apperr.PublicMessage(err),
		"code":  code,
	})
}

// parseID reads a uuid path parameter. It writes the error response and
// reports false when the value is malformed.
func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": "invalid " + param,
			"code":  apperr.CodeInvalidID,
		})
		return uuid.Nil, false
	}
	return id, true
}

func requireOwner(c *gin.Context) (string, bool) {
	ownerID, ok := auth.GetOwnerID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return ownerID, true
}
