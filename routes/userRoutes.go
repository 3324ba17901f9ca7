package routes

import (
	"atlas-civico/controllers"
	"atlas-civico/middlewares"

	"github.com/gin-gonic/gin"
)

// UserRoutes sets up the user-scoped routes
func UserRoutes(r *gin.Engine) {
	user := r.Group("/api/user", middlewares.AuthMiddleware())
	{
		user.GET("/issues", controllers.GetMyIssues)
		user.GET("/upvotes", controllers.GetMyUpvotes)
		user.GET("/tutorial", controllers.GetTutorialSeen)
		user.PUT("/tutorial", controllers.SetTutorialSeen)
	}
}
