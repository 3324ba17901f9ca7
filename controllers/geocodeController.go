package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ReverseGeocode resolves a coordinate to an address. Lookup failures are
// non-fatal; the coordinate literal comes back instead.
func ReverseGeocode(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil || !validCoordinate(lat, lng) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coordinates"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address": geocoder.Reverse(c.Request.Context(), lat, lng),
	})
}

// SearchPlaces resolves partial text to a ranked list of places.
func SearchPlaces(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing query"})
		return
	}

	places, err := geocoder.Search(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Geocoding service unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"places": places})
}
