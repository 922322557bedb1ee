package auth

import (
	"net/http"

	"github.com/activityladdr/laddr/internal/models"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// RequireAuth is a middleware that ensures the user is authenticated
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get(SessionUserID).(uint)

		if !ok || userID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"kind":    "unauthenticated",
				"message": "Authentication required.",
			})
			return
		}

		// User is authenticated - set context values for downstream handlers
		c.Set(SessionUserID, userID)
		c.Set(SessionUserName, session.Get(SessionUserName))
		c.Set(SessionRole, session.Get(SessionRole))

		c.Next()
	}
}

// RequireAdmin rejects authenticated users without the admin role. It must
// run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if role, _ := c.Get(SessionRole); role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"kind":    "forbidden",
				"message": "Admin access required.",
			})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user set by RequireAuth.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(SessionUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
