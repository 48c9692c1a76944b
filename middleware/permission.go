package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CheckAdminPermissionMiddleware must run after CheckLoginMiddleware.
func CheckAdminPermissionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			log.Printf("[%s] admin check without identity on %s", RequestID(c), c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}
		if !identity.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin permission required",
			})
			return
		}

		c.Next()
	}
}
