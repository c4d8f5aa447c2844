package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marketloop/mobile-backend/types"
)

// UserIDKey is the gin context key holding the authenticated user ID.
const UserIDKey = "user_id"

// Identity extracts the caller's user ID from the X-User-ID header placed by
// the API gateway after session validation. Requests without one are
// rejected; this service never validates credentials itself.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.ErrorResponse{
				Type:    "UNAUTHORIZED",
				Message: "Missing user identity",
			})
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user ID from the gin context.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
