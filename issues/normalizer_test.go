package issues

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"atlas-civico/models"
)

func TestNormalizeFullRecord(t *testing.T) {
	reported := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	raw := bson.M{
		"title":        "Pothole",
		"description":  "Large pothole",
		"category":     "Roads",
		"status":       "UnderReview",
		"address":      "Quadra 12, Brasília",
		"imageUrl":     "https://example.com/pothole.jpg",
		"reporterId":   "user-1",
		"reporterName": "Ana",
		"upvotes":      int64(7),
		"reportedAt":   primitive.NewDateTimeFromTime(reported),
		"location": bson.M{
			"lat": -16.0,
			"lng": -47.98,
		},
	}

	issue := Normalize("abc123", raw)

	assert.Equal(t, "abc123", issue.ID)
	assert.Equal(t, "Pothole", issue.Title)
	assert.Equal(t, models.StatusUnderReview, issue.Status)
	assert.Equal(t, -16.0, issue.Latitude)
	assert.Equal(t, -47.98, issue.Longitude)
	assert.Equal(t, int64(7), issue.Upvotes)
	assert.True(t, issue.ReportedAt.Equal(reported))
}

func TestNormalizeMissingCommentsYieldsEmptySlice(t *testing.T) {
	issue := Normalize("id1", bson.M{"title": "No comments here"})

	require.NotNil(t, issue.Comments)
	assert.Empty(t, issue.Comments)
}

func TestNormalizeDefaults(t *testing.T) {
	before := time.Now()
	issue := Normalize("id2", bson.M{})
	after := time.Now()

	assert.Equal(t, models.StatusReceived, issue.Status)
	assert.Equal(t, int64(0), issue.Upvotes)
	assert.Empty(t, issue.Comments)
	assert.Equal(t, 0.0, issue.Latitude)
	assert.Equal(t, 0.0, issue.Longitude)
	// Missing timestamp defaults to "now".
	assert.False(t, issue.ReportedAt.Before(before))
	assert.False(t, issue.ReportedAt.After(after))
}

func TestNormalizeRejectsNegativeUpvotes(t *testing.T) {
	issue := Normalize("id3", bson.M{"upvotes": int64(-4)})
	assert.Equal(t, int64(0), issue.Upvotes)
}

func TestNormalizeUnknownStatusFallsBack(t *testing.T) {
	issue := Normalize("id4", bson.M{"status": "Bogus"})
	assert.Equal(t, models.StatusReceived, issue.Status)
}

func TestNormalizeSortsCommentsNewestFirst(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	t3 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	raw := bson.M{
		"comments": bson.A{
			bson.M{"id": "c-old", "content": "first", "createdAt": primitive.NewDateTimeFromTime(t1)},
			bson.M{"id": "c-new", "content": "third", "createdAt": primitive.NewDateTimeFromTime(t3)},
			bson.M{"id": "c-mid", "content": "second", "createdAt": primitive.NewDateTimeFromTime(t2)},
		},
	}

	issue := Normalize("id5", raw)

	require.Len(t, issue.Comments, 3)
	assert.Equal(t, "c-new", issue.Comments[0].ID)
	assert.Equal(t, "c-mid", issue.Comments[1].ID)
	assert.Equal(t, "c-old", issue.Comments[2].ID)
	for i := 1; i < len(issue.Comments); i++ {
		assert.True(t, issue.Comments[i-1].CreatedAt.After(issue.Comments[i].CreatedAt))
	}
}

func TestNormalizeCommentRoleSnapshot(t *testing.T) {
	raw := bson.M{
		"comments": bson.A{
			bson.M{
				"id":         "c1",
				"content":    "we'll look into it",
				"authorId":   "admin-1",
				"authorName": "Rita",
				"authorRole": "admin",
				"createdAt":  primitive.NewDateTimeFromTime(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)),
			},
		},
	}

	issue := Normalize("id6", raw)

	require.Len(t, issue.Comments, 1)
	assert.Equal(t, models.RoleAdmin, issue.Comments[0].AuthorRole)
}

func TestNormalizeHandlesBsonDSubdocuments(t *testing.T) {
	raw := bson.M{
		"location": bson.D{
			{Key: "lat", Value: 12.5},
			{Key: "lng", Value: -8.25},
		},
	}

	issue := Normalize("id7", raw)

	assert.Equal(t, 12.5, issue.Latitude)
	assert.Equal(t, -8.25, issue.Longitude)
}

func TestNormalizeSkipsMalformedCommentEntries(t *testing.T) {
	raw := bson.M{
		"comments": bson.A{
			"not a document",
			bson.M{"id": "c1", "content": "valid"},
		},
	}

	issue := Normalize("id8", raw)

	require.Len(t, issue.Comments, 1)
	assert.Equal(t, "c1", issue.Comments[0].ID)
}
