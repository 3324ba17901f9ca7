package controllers

import (
	"context"
	"net/http"
	"time"

	"atlas-civico/config"
	"atlas-civico/issues"
	"atlas-civico/models"
	authUtils "atlas-civico/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// AddComment appends a comment to an issue. The author's role is snapshotted
// at creation time.
func AddComment(c *gin.Context) {
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
		Content string `json:"content" binding:"required,max=500"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	authorID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	var author models.User
	if err := userCollection.FindOne(ctx, bson.M{"_id": authorID}).Decode(&author); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown author"})
		return
	}

	// The role stored on the comment is a snapshot of the author's role at
	// creation time, taken from the user record rather than the token.
	comment := models.Comment{
		ID:         uuid.NewString(),
		Content:    input.Content,
		AuthorID:   authorID.Hex(),
		AuthorName: author.Name,
		AuthorRole: author.Role,
		CreatedAt:  time.Now(),
	}

	result, err := issueCollection.UpdateOne(ctx,
		bson.M{"_id": issueID},
		bson.M{"$push": bson.M{"comments": comment}},
	)
	if err != nil {
		config.Log.Errorf("Failed to add comment: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add comment"})
		return
	}
	if result.MatchedCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		return
	}

	c.JSON(http.StatusCreated, comment)
}

// DeleteComment removes a comment by its unique ID. Removal is keyed by the
// comment ID, never by whole-value match, so structurally identical comments
// cannot shadow each other. Deleting a comment that no longer exists is a
// logged no-op, not an error.
func DeleteComment(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}
	commentID := c.Param("commentId")

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
			respondAppError(c, authUtils.NewAppError(authUtils.ErrIssueNotFound, "Issue not found", err))
		} else {
			respondAppError(c, authUtils.NewAppError(authUtils.ErrDatabase, "Failed to retrieve issue", err))
		}
		return
	}

	issue := issues.Normalize(issueID.Hex(), doc)
	var target *models.Comment
	for i := range issue.Comments {
		if issue.Comments[i].ID == commentID {
			target = &issue.Comments[i]
			break
		}
	}

	if target == nil {
		config.Log.Warnf("comment %s already gone from issue %s", commentID, issueID.Hex())
		c.JSON(http.StatusOK, gin.H{"message": "Comment already removed"})
		return
	}

	if target.AuthorID != userID.(string) && role != string(models.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to delete this comment"})
		return
	}

	if _, err := issueCollection.UpdateOne(ctx,
		bson.M{"_id": issueID},
		bson.M{"$pull": bson.M{"comments": bson.M{"id": commentID}}},
	); err != nil {
		config.Log.Errorf("Failed to delete comment: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete comment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}
