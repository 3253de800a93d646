package auth

import "github.com/gin-gonic/gin"

const (
	userIDKey   = "userID"
	userRoleKey = "userRole"
)

// SetIdentity stores the authenticated user on the request context.
func SetIdentity(c *gin.Context, userID, role string) {
	c.Set(userIDKey, userID)
	c.Set(userRoleKey, role)
}

// GetUserID returns the authenticated user's ID or empty string.
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// GetUserRole returns the authenticated user's role, defaulting to RoleUser.
func GetUserRole(c *gin.Context) string {
	if role := c.GetString(userRoleKey); role != "" {
		return role
	}
	return RoleUser
}
