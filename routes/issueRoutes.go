package routes

import (
	"atlas-civico/controllers"
	"atlas-civico/middlewares"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine) {
	issue := r.Group("/api/issue")
	{
		issue.POST("/create", middlewares.AuthMiddleware(), middlewares.IssueRateLimiter(10), controllers.CreateIssue)
		issue.GET("/all", middlewares.OptionalAuthMiddleware(), controllers.GetAllIssues)
		issue.GET("/clusters", controllers.GetClusters)
		issue.GET("/categories", controllers.GetCategories)
		issue.GET("/analytics", controllers.GetIssueAnalytics)
		issue.GET("/:id", middlewares.OptionalAuthMiddleware(), controllers.GetIssue)
		issue.PUT("/:id", middlewares.AuthMiddleware(), controllers.UpdateIssue)
		issue.DELETE("/:id", middlewares.AuthMiddleware(), controllers.DeleteIssue)
		issue.PATCH("/:id/status", middlewares.AuthMiddleware(), middlewares.AdminMiddleware(), controllers.UpdateIssueStatus)
		issue.POST("/:id/upvote", middlewares.OptionalAuthMiddleware(), controllers.UpvoteIssue)
		issue.POST("/:id/comments", middlewares.AuthMiddleware(), controllers.AddComment)
		issue.DELETE("/:id/comments/:commentId", middlewares.AuthMiddleware(), controllers.DeleteComment)
	}
}
