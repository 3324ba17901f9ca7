package controllers

import (
	"context"
	"net/http"
	"time"

	"atlas-civico/issues"
	authUtils "atlas-civico/utils"
	"atlas-civico/votes"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// respondAppError writes an AppError with its mapped HTTP status.
func respondAppError(c *gin.Context, appErr *authUtils.AppError) {
	c.JSON(authUtils.AppErrorToHTTPStatus(appErr.Code), gin.H{
		"error": appErr.Message,
		"code":  appErr.Code,
	})
}

// UpvoteIssue applies the caller's upvote through the optimistic reconciler.
// A repeat upvote is a silent no-op; a failed store write rolls the ledger
// back before the response is sent.
func UpvoteIssue(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	userID := ""
	if v, exists := c.Get("user_id"); exists {
		userID = v.(string)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var doc bson.M
	err = issueCollection.FindOne(ctx, bson.M{"_id": issueID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			respondAppError(c, authUtils.NewAppError(authUtils.ErrIssueNotFound, "Issue not found", err))
		} else {
			respondAppError(c, authUtils.NewAppError(authUtils.ErrDatabase, "Failed to retrieve issue", err))
		}
		return
	}
	current := issues.Normalize(issueID.Hex(), doc).Upvotes

	count, err := reconciler.Upvote(ctx, userID, issueID.Hex(), current)
	if err == votes.ErrUnauthenticated {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":    "Sign in to upvote",
			"code":     authUtils.ErrUnauthorized,
			"redirect": "/api/auth/login",
		})
		return
	}
	if err != nil {
		respondAppError(c, authUtils.NewAppError(authUtils.ErrDatabase, "Failed to record upvote", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"upvotes": count,
		"upvoted": true,
	})
}

// GetMyUpvotes returns the caller's upvoted-issue ledger.
func GetMyUpvotes(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	set := reconciler.UpvotedIssues(userID.(string))
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}

	c.JSON(http.StatusOK, gin.H{"issueIds": ids})
}
