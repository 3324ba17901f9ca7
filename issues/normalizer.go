package issues

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"atlas-civico/models"
)

// Normalize converts one raw persisted record into a domain Issue. The stored
// shape is treated as an untrusted, partially-optional schema: every field is
// defaulted explicitly rather than trusting the decoder. Timestamps default
// to now when absent, the packed location subdocument is unpacked into
// latitude/longitude, missing upvote and comment fields become zero/empty,
// and comments are sorted descending by creation time.
func Normalize(id string, raw bson.M) models.Issue {
	issue := models.Issue{
		ID:           id,
		Title:        asString(raw["title"]),
		Description:  asString(raw["description"]),
		Category:     asString(raw["category"]),
		Address:      asString(raw["address"]),
		ImageURL:     asString(raw["imageUrl"]),
		ReporterID:   asString(raw["reporterId"]),
		ReporterName: asString(raw["reporterName"]),
		Status:       models.IssueStatus(asString(raw["status"])),
		Upvotes:      asInt64(raw["upvotes"]),
		ReportedAt:   asTime(raw["reportedAt"]),
		Comments:     normalizeComments(raw["comments"]),
	}

	if !models.ValidStatus(string(issue.Status)) {
		issue.Status = models.StatusReceived
	}
	if issue.Upvotes < 0 {
		issue.Upvotes = 0
	}

	if loc, ok := asDoc(raw["location"]); ok {
		issue.Latitude = asFloat(loc["lat"])
		issue.Longitude = asFloat(loc["lng"])
	}

	return issue
}

func normalizeComments(v interface{}) []models.Comment {
	arr, ok := v.(bson.A)
	if !ok {
		return []models.Comment{}
	}

	comments := make([]models.Comment, 0, len(arr))
	for _, el := range arr {
		doc, ok := asDoc(el)
		if !ok {
			continue
		}
		comments = append(comments, models.Comment{
			ID:         asString(doc["id"]),
			Content:    asString(doc["content"]),
			AuthorID:   asString(doc["authorId"]),
			AuthorName: asString(doc["authorName"]),
			AuthorRole: models.Role(asString(doc["authorRole"])),
			CreatedAt:  asTime(doc["createdAt"]),
		})
	}

	// Newest first.
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})

	return comments
}

func asDoc(v interface{}) (bson.M, bool) {
	switch d := v.(type) {
	case bson.M:
		return d, true
	case bson.D:
		return d.Map(), true
	}
	return nil, false
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case primitive.DateTime:
		return t.Time()
	}
	return time.Now()
}
