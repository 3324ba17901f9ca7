package controllers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"atlas-civico/cluster"
	"atlas-civico/config"
	"atlas-civico/feed"
	"atlas-civico/filter"
	"atlas-civico/issues"
	"atlas-civico/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var issueCollection *mongo.Collection
var userCollection *mongo.Collection

// issueWithUpvoted decorates an issue with the caller's ledger state.
type issueWithUpvoted struct {
	models.Issue
	Upvoted bool `json:"upvoted"`
}

func decorate(c *gin.Context, issue models.Issue) issueWithUpvoted {
	out := issueWithUpvoted{Issue: issue}
	if userID, exists := c.Get("user_id"); exists {
		out.Upvoted = reconciler.Upvoted(userID.(string), issue.ID)
	}
	return out
}

// placeholderImage is the auto-generated image reference given to reports
// submitted without a photo.
func placeholderImage(category string) string {
	return "https://placehold.co/600x400?text=" + url.QueryEscape(category)
}

// createIssueInput binds the report submission. Coordinates are pointers so
// that zero values (equator, prime meridian) survive the required check;
// only absent fields fail binding.
type createIssueInput struct {
	Title       string   `json:"title" binding:"required,max=200"`
	Description string   `json:"description" binding:"required,max=1000"`
	Category    string   `json:"category" binding:"required,max=50"`
	Latitude    *float64 `json:"latitude" binding:"required"`
	Longitude   *float64 `json:"longitude" binding:"required"`
	Address     string   `json:"address,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
}

// validCoordinate reports whether the pair is a representable geographic
// coordinate. The poles and the antimeridian are valid.
func validCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// CreateIssue handles the creation of a new issue
func CreateIssue(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	reporterID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var input createIssueInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lat, lng := *input.Latitude, *input.Longitude

	// Coordinate validation happens before anything touches the network.
	if !validCoordinate(lat, lng) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coordinates"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var reporter models.User
	if err := userCollection.FindOne(ctx, bson.M{"_id": reporterID}).Decode(&reporter); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown reporter"})
		return
	}

	address := input.Address
	if address == "" {
		address = geocoder.Reverse(ctx, lat, lng)
	}

	imageURL := input.ImageURL
	if imageURL == "" {
		imageURL = placeholderImage(input.Category)
	}

	doc := models.IssueDoc{
		Title:        input.Title,
		Description:  input.Description,
		Category:     input.Category,
		Status:       models.StatusReceived,
		Location:     models.GeoPoint{Latitude: lat, Longitude: lng},
		Address:      address,
		ImageURL:     imageURL,
		ReportedAt:   time.Now(),
		ReporterID:   reporterID.Hex(),
		ReporterName: reporter.Name,
		Upvotes:      0,
		Comments:     []models.Comment{},
	}

	result, err := issueCollection.InsertOne(ctx, doc)
	if err != nil {
		config.Log.Errorf("Failed to create issue: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create issue"})
		return
	}

	if _, err := userCollection.UpdateOne(ctx,
		bson.M{"_id": reporterID},
		bson.M{"$inc": bson.M{"issuesReported": 1}},
	); err != nil {
		config.Log.Warnf("Failed to bump issuesReported for user %s: %v", reporterID.Hex(), err)
	}

	issue := models.Issue{
		Title:        doc.Title,
		Description:  doc.Description,
		Category:     doc.Category,
		Status:       doc.Status,
		Latitude:     doc.Location.Latitude,
		Longitude:    doc.Location.Longitude,
		Address:      doc.Address,
		ImageURL:     doc.ImageURL,
		ReportedAt:   doc.ReportedAt,
		ReporterID:   doc.ReporterID,
		ReporterName: doc.ReporterName,
		Comments:     []models.Comment{},
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		issue.ID = id.Hex()
	}

	c.JSON(http.StatusCreated, issue)
}

// GetAllIssues handles retrieving issues with filtering, pagination and the
// caller's upvote state
func GetAllIssues(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	categories := c.QueryArray("category")
	status := c.Query("status")
	search := c.Query("search")
	sortParam := c.DefaultQuery("sort", "newest")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	mongoFilter := bson.M{}

	if len(categories) > 0 {
		mongoFilter["category"] = bson.M{"$in": categories}
	}

	if status != "" && status != "all" {
		if !models.ValidStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		mongoFilter["status"] = status
	}

	if search != "" {
		mongoFilter["$or"] = []bson.M{
			{"title": bson.M{"$regex": search, "$options": "i"}},
			{"description": bson.M{"$regex": search, "$options": "i"}},
		}
	}

	skip := (page - 1) * limit

	var sortOptions bson.D
	switch sortParam {
	case "oldest":
		sortOptions = bson.D{{Key: "reportedAt", Value: 1}}
	case "upvotes":
		sortOptions = bson.D{{Key: "upvotes", Value: -1}}
	case "newest":
		fallthrough
	default:
		sortOptions = bson.D{{Key: "reportedAt", Value: -1}}
	}

	totalCount, err := issueCollection.CountDocuments(ctx, mongoFilter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count issues"})
		return
	}

	findOptions := options.Find().
		SetSort(sortOptions).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := issueCollection.Find(ctx, mongoFilter, findOptions)
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

	totalPages := int((totalCount + int64(limit) - 1) / int64(limit))

	c.JSON(http.StatusOK, gin.H{
		"issues":      out,
		"totalIssues": totalCount,
		"totalPages":  totalPages,
		"currentPage": page,
	})
}

// GetIssue retrieves an issue by its ID
func GetIssue(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var doc bson.M
	err = issueCollection.FindOne(ctx, bson.M{"_id": issueID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue"})
		}
		return
	}

	c.JSON(http.StatusOK, decorate(c, issues.Normalize(issueID.Hex(), doc)))
}

// UpdateIssue allows the creator of an issue to update its details
func UpdateIssue(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input struct {
		Title       *string  `json:"title,omitempty"`
		Description *string  `json:"description,omitempty"`
		Category    *string  `json:"category,omitempty"`
		Address     *string  `json:"address,omitempty"`
		ImageURL    *string  `json:"imageUrl,omitempty"`
		Latitude    *float64 `json:"latitude,omitempty"`
		Longitude   *float64 `json:"longitude,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var doc bson.M
	err = issueCollection.FindOne(ctx, bson.M{"_id": issueID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue"})
		}
		return
	}

	existing := issues.Normalize(issueID.Hex(), doc)
	if existing.ReporterID != userID.(string) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to update this issue"})
		return
	}

	update := bson.M{}
	if input.Title != nil {
		update["title"] = *input.Title
	}
	if input.Description != nil {
		update["description"] = *input.Description
	}
	if input.Category != nil {
		update["category"] = *input.Category
	}
	if input.Address != nil {
		update["address"] = *input.Address
	}
	if input.ImageURL != nil {
		update["imageUrl"] = *input.ImageURL
	}
	if input.Latitude != nil && input.Longitude != nil {
		if !validCoordinate(*input.Latitude, *input.Longitude) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coordinates"})
			return
		}
		update["location"] = models.GeoPoint{Latitude: *input.Latitude, Longitude: *input.Longitude}
	}

	if len(update) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	if _, err := issueCollection.UpdateOne(ctx, bson.M{"_id": issueID}, bson.M{"$set": update}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update issue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Issue updated successfully"})
}

// UpdateIssueStatus lets an administrator move an issue through triage
func UpdateIssueStatus(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidStatus(input.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := issueCollection.UpdateOne(ctx,
		bson.M{"_id": issueID},
		bson.M{"$set": bson.M{"status": input.Status}},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}
	if result.MatchedCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Status updated successfully", "status": input.Status})
}

// DeleteIssue allows the creator or an administrator to delete an issue
func DeleteIssue(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	role, _ := c.Get("role")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var doc bson.M
	err = issueCollection.FindOne(ctx, bson.M{"_id": issueID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue"})
		}
		return
	}

	existing := issues.Normalize(issueID.Hex(), doc)
	if existing.ReporterID != userID.(string) && role != string(models.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to delete this issue"})
		return
	}

	if _, err := issueCollection.DeleteOne(ctx, bson.M{"_id": issueID}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete issue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Issue deleted successfully"})
}

// clusterMarker is the wire shape of one render primitive.
type clusterMarker struct {
	Latitude      float64       `json:"latitude"`
	Longitude     float64       `json:"longitude"`
	Count         int           `json:"count"`
	Issue         *models.Issue `json:"issue,omitempty"`
	ExpansionZoom int           `json:"expansionZoom,omitempty"`
}

// GetClusters partitions the issues inside the viewport into cluster and
// singleton markers for the requested zoom level
func GetClusters(c *gin.Context) {
	north, errN := strconv.ParseFloat(c.Query("north"), 64)
	south, errS := strconv.ParseFloat(c.Query("south"), 64)
	east, errE := strconv.ParseFloat(c.Query("east"), 64)
	west, errW := strconv.ParseFloat(c.Query("west"), 64)
	zoom, errZ := strconv.Atoi(c.DefaultQuery("zoom", "12"))
	if errN != nil || errS != nil || errE != nil || errW != nil || errZ != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid viewport parameters"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	raws, err := feed.NewMongoSource(issueCollection).List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}

	all := make([]models.Issue, 0, len(raws))
	for _, raw := range raws {
		all = append(all, issues.Normalize(raw.ID, raw.Doc))
	}

	categoryFilter := filter.New()
	categoryFilter.Update(all)
	if categories := c.QueryArray("category"); len(categories) > 0 {
		categoryFilter.Select(categories)
	}
	visible := categoryFilter.Apply(all)

	bounds := cluster.Bounds{North: north, South: south, East: east, West: west}
	markers := cluster.Cluster(visible, bounds, zoom)

	out := make([]clusterMarker, 0, len(markers))
	for _, m := range markers {
		cm := clusterMarker{
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
			Count:     m.Count,
			Issue:     m.Issue,
		}
		if m.IsCluster() {
			cm.ExpansionZoom = cluster.ExpansionZoom(m, zoom)
		}
		out = append(out, cm)
	}

	c.JSON(http.StatusOK, gin.H{
		"markers":    out,
		"zoom":       zoom,
		"focusZoom":  cluster.FocusZoom(zoom),
		"categories": categoryFilter.Categories(),
	})
}

// GetCategories returns the categories the reporting form offers plus any
// other values already present in the store, in stable order.
func GetCategories(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	categories := make([]string, 0, len(models.DefaultCategories))
	seen := make(map[string]bool)
	for _, cat := range models.DefaultCategories {
		categories = append(categories, cat)
		seen[cat] = true
	}

	stored, err := issueCollection.Distinct(ctx, "category", bson.M{})
	if err != nil {
		config.Log.Warnf("Failed to list stored categories: %v", err)
	}
	for _, v := range stored {
		if cat, ok := v.(string); ok && cat != "" && !seen[cat] {
			categories = append(categories, cat)
			seen[cat] = true
		}
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GetIssueAnalytics returns analytical data about issues
func GetIssueAnalytics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Issues by category
	categoryPipeline := []bson.M{
		{
			"$group": bson.M{
				"_id":   "$category",
				"count": bson.M{"$sum": 1},
			},
		},
		{
			"$project": bson.M{
				"name":  "$_id",
				"value": "$count",
				"_id":   0,
			},
		},
	}

	categoryCursor, err := issueCollection.Aggregate(ctx, categoryPipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get category analytics"})
		return
	}
	defer categoryCursor.Close(ctx)

	var issuesByCategory []bson.M
	if err := categoryCursor.All(ctx, &issuesByCategory); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode category analytics"})
		return
	}

	// Reports per day for the last 7 days
	var last7Days []gin.H
	for i := 6; i >= 0; i-- {
		date := time.Now().AddDate(0, 0, -i)
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
		nextDate := date.AddDate(0, 0, 1)

		count, err := issueCollection.CountDocuments(ctx, bson.M{
			"reportedAt": bson.M{
				"$gte": date,
				"$lt":  nextDate,
			},
		})
		if err != nil {
			count = 0
		}

		last7Days = append(last7Days, gin.H{
			"date":  date.Format("2006-01-02"),
			"count": count,
		})
	}

	// Top upvoted issues
	findOptions := options.Find().
		SetSort(bson.D{{Key: "upvotes", Value: -1}}).
		SetLimit(5)

	cursor, err := issueCollection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve top issues"})
		return
	}
	defer cursor.Close(ctx)

	var topDocs []bson.M
	if err := cursor.All(ctx, &topDocs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode top issues"})
		return
	}

	topUpvoted := make([]gin.H, 0, len(topDocs))
	for _, doc := range topDocs {
		id := ""
		if objID, ok := doc["_id"].(primitive.ObjectID); ok {
			id = objID.Hex()
		}
		issue := issues.Normalize(id, doc)
		topUpvoted = append(topUpvoted, gin.H{
			"id":       issue.ID,
			"title":    issue.Title,
			"category": issue.Category,
			"upvotes":  issue.Upvotes,
		})
	}

	totalIssues, err := issueCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		totalIssues = 0
	}

	openIssues, err := issueCollection.CountDocuments(ctx, bson.M{
		"status": bson.M{"$in": []string{string(models.StatusReceived), string(models.StatusUnderReview)}},
	})
	if err != nil {
		openIssues = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"issuesByCategory": issuesByCategory,
		"last7Days":        last7Days,
		"topUpvotedIssues": topUpvoted,
		"totalIssues":      totalIssues,
		"openIssues":       openIssues,
	})
}
