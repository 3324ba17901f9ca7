package routes

import (
	"atlas-civico/controllers"

	"github.com/gin-gonic/gin"
)

// GeocodeRoutes sets up the address lookup routes
func GeocodeRoutes(r *gin.Engine) {
	geo := r.Group("/api/geocode")
	{
		geo.GET("/reverse", controllers.ReverseGeocode)
		geo.GET("/search", controllers.SearchPlaces)
	}
}
