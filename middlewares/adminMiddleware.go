package middlewares

import (
	"net/http"

	"atlas-civico/models"

	"github.com/gin-gonic/gin"
)

// AdminMiddleware restricts a route to administrators. Must run after
// AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get("role")
		if role != string(models.RoleAdmin) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Administrator access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}
