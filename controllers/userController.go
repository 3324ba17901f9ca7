package controllers

import (
	"context"
	"net/http"
	"time"

	"atlas-civico/config"
	"atlas-civico/issues"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const tutorialKeyPrefix = "tutorial:"

// tutorialSeen interprets a flag read: a missing key means the tutorial was
// never dismissed, any other error is a real failure.
func tutorialSeen(val string, err error) (bool, error) {
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == "1", nil
}

// GetMyIssues retrieves all issues created by the authenticated user
func GetMyIssues(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	findOptions := options.Find().SetSort(bson.D{{Key: "reportedAt", Value: -1}})
	cursor, err := issueCollection.Find(ctx, bson.M{"reporterId": userID.(string)}, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode issues"})
		return
	}

	out := make([]issueWithUpvoted, 0, len(docs))
	for _, doc := range docs {
		id := ""
		if objID, ok := doc["_id"].(primitive.ObjectID); ok {
			id = objID.Hex()
		}
		out = append(out, decorate(c, issues.Normalize(id, doc)))
	}

	c.JSON(http.StatusOK, out)
}

// GetTutorialSeen reports whether the user has dismissed the map tutorial
func GetTutorialSeen(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	val, err := config.RedisClient.Get(config.Ctx, tutorialKeyPrefix+userID.(string)).Result()
	seen, err := tutorialSeen(val, err)
	if err != nil {
		config.Log.Errorf("Failed to read tutorial flag: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read tutorial flag"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"seen": seen})
}

// SetTutorialSeen marks the map tutorial as dismissed for the user
func SetTutorialSeen(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	if err := config.RedisClient.Set(config.Ctx, tutorialKeyPrefix+userID.(string), "1", 0).Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save tutorial flag"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"seen": true})
}
