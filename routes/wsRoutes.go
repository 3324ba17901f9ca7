package routes

import (
	"atlas-civico/ws"

	"github.com/gin-gonic/gin"
)

// WSRoutes exposes the live issue feed over websocket
func WSRoutes(r *gin.Engine, hub *ws.Hub) {
	r.GET("/api/ws", func(c *gin.Context) {
		ws.Serve(hub, c.Writer, c.Request)
	})
}
