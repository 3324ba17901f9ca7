package models

import (
	"time"
)

// IssueStatus enum
type IssueStatus string

const (
	StatusReceived    IssueStatus = "Received"
	StatusUnderReview IssueStatus = "UnderReview"
	StatusResolved    IssueStatus = "Resolved"
)

// ValidStatus reports whether s is a known issue status.
func ValidStatus(s string) bool {
	switch IssueStatus(s) {
	case StatusReceived, StatusUnderReview, StatusResolved:
		return true
	}
	return false
}

// Categories form an open set; these are the ones the reporting form offers.
// Issues carrying other category values are still accepted on read.
var DefaultCategories = []string{"Roads", "Lighting", "Waste", "Water", "Other"}

// GeoPoint is the packed coordinate subdocument as persisted.
type GeoPoint struct {
	Latitude  float64 `bson:"lat" json:"lat"`
	Longitude float64 `bson:"lng" json:"lng"`
}

// Comment is a remark attached to an issue. The author's role is a snapshot
// taken at creation time and is never rewritten if the role later changes.
type Comment struct {
	ID         string    `bson:"id" json:"id"`
	Content    string    `bson:"content" json:"content"`
	AuthorID   string    `bson:"authorId" json:"authorId"`
	AuthorName string    `bson:"authorName" json:"authorName"`
	AuthorRole Role      `bson:"authorRole" json:"authorRole"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}

// Issue is the domain shape of a reported civic problem. It is a projection
// of remote state; nothing in this process owns its durability.
type Issue struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Category     string      `json:"category"`
	Status       IssueStatus `json:"status"`
	Latitude     float64     `json:"latitude"`
	Longitude    float64     `json:"longitude"`
	Address      string      `json:"address"`
	ImageURL     string      `json:"imageUrl"`
	ReportedAt   time.Time   `json:"reportedAt"`
	ReporterID   string      `json:"reporterId"`
	ReporterName string      `json:"reporterName"`
	Upvotes      int64       `json:"upvotes"`
	Comments     []Comment   `json:"comments"`
}

// IssueDoc is the persisted record written on creation. Reads never decode
// into this struct; they go through issues.Normalize so every field is
// defaulted explicitly.
type IssueDoc struct {
	Title        string      `bson:"title"`
	Description  string      `bson:"description"`
	Category     string      `bson:"category"`
	Status       IssueStatus `bson:"status"`
	Location     GeoPoint    `bson:"location"`
	Address      string      `bson:"address"`
	ImageURL     string      `bson:"imageUrl"`
	ReportedAt   time.Time   `bson:"reportedAt"`
	ReporterID   string      `bson:"reporterId"`
	ReporterName string      `bson:"reporterName"`
	Upvotes      int64       `bson:"upvotes"`
	Comments     []Comment   `bson:"comments"`
}
