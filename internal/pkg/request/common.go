package request

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ByIDRequest is a common struct for endpoints that require an ID path parameter.
type ByIDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// BindID binds the :id path parameter, or writes a 400 and returns false.
func BindID(c *gin.Context) (string, bool) {
	var req ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return "", false
	}
	return req.ID, true
}
