package votes

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const ledgerKeyPrefix = "upvotes:"

// RedisStorage keeps each user's upvoted-issue set in a Redis set keyed by
// user ID.
type RedisStorage struct {
	Client *redis.Client
}

func (s *RedisStorage) Load(ctx context.Context, userID string) ([]string, error) {
	return s.Client.SMembers(ctx, ledgerKeyPrefix+userID).Result()
}

func (s *RedisStorage) Append(ctx context.Context, userID, issueID string) error {
	return s.Client.SAdd(ctx, ledgerKeyPrefix+userID, issueID).Err()
}

// MongoStore increments the persisted upvote count atomically with $inc.
type MongoStore struct {
	Collection *mongo.Collection
}

func (s *MongoStore) IncrementUpvotes(ctx context.Context, issueID string) error {
	objID, err := primitive.ObjectIDFromHex(issueID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := s.Collection.UpdateOne(ctx,
		bson.M{"_id": objID},
		bson.M{"$inc": bson.M{"upvotes": 1}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
