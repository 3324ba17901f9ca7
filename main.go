package main

import (
	"context"
	"net/http"
	"os"

	"atlas-civico/config"
	"atlas-civico/controllers"
	"atlas-civico/feed"
	"atlas-civico/geocode"
	"atlas-civico/routes"
	"atlas-civico/session"
	"atlas-civico/votes"
	"atlas-civico/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// hubNotifier surfaces upvote failures to connected clients.
type hubNotifier struct {
	hub *ws.Hub
}

func (n *hubNotifier) UpvoteFailed(userID, issueID string) {
	n.hub.Notify(map[string]string{
		"type":  "upvoteFailed",
		"issue": issueID,
		"user":  userID,
	})
}

func main() {
	if err := godotenv.Load(); err != nil {
		config.Log.Info("No .env file found")
	}

	db := config.ConnectDB()
	if db == nil {
		config.Log.Fatal("Failed to connect to MongoDB")
	}
	config.ConnectRedis()

	hub := ws.NewHub(config.Log)
	go hub.Run()

	issueFeed := feed.New(feed.NewMongoSource(config.GetCollection("issues")), config.Log)
	cancelFeed, err := issueFeed.Run(context.Background(), hub.BroadcastSnapshot)
	if err != nil {
		config.Log.Fatalf("Failed to start issue feed: %v", err)
	}
	defer cancelFeed()

	users := &session.MongoUsers{Collection: config.GetCollection("users")}
	sessions := session.NewManager(users, config.Log)

	reconciler := votes.NewReconciler(
		&votes.MongoStore{Collection: config.GetCollection("issues")},
		&votes.RedisStorage{Client: config.RedisClient},
		&hubNotifier{hub: hub},
		config.Log,
	)

	geocoder := geocode.NewClient(os.Getenv("GEOCODER_URL"), config.Log)

	controllers.Init(sessions, reconciler, geocoder)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{os.Getenv("FRONTEND_ORIGIN")},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	routes.AuthRoutes(r)
	routes.UserRoutes(r)
	routes.IssueRoutes(r)
	routes.GeocodeRoutes(r)
	routes.WSRoutes(r, hub)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	if err := r.Run(":8080"); err != nil {
		config.Log.Fatalf("Failed to start server: %v", err)
	}
}
