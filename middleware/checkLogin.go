package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const authErrorKey = "electrotech.auth_error"

// CheckLoginMiddleware aborts with 401 unless AuthMiddleware resolved an identity.
func CheckLoginMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentIdentity(c); !ok {
			message := "authentication required"
			if reason := c.GetString(authErrorKey); reason != "" {
				message = reason
			}
			c.Header("WWW-Authenticate", `Bearer realm="electrotech"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": message,
			})
			return
		}

		c.Next()
	}
}
