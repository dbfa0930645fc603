package handler

import (
	"net/http"

	"insurance-backend/pkg/apperr"
	"insurance-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// respondError maps a service error onto the response envelope using its
// classified kind.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	c.JSON(status, response.ErrorWithKind(status, err.Error(), apperr.KindOf(err).String()))
}

// currentUserID pulls the authenticated subject set by the auth middleware.
func currentUserID(c *gin.Context) (string, bool) {
	raw, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return "", false
	}
	id, ok := raw.(string)
	if !ok || id == "" {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid User ID format"))
		return "", false
	}
	return id, true
}
