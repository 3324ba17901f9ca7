package feed

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoSource backs the feed with a MongoDB collection: List is a sorted
// find, Changes is a change stream.
type mongoSource struct {
	col *mongo.Collection
}

func NewMongoSource(col *mongo.Collection) Source {
	return &mongoSource{col: col}
}

func (s *mongoSource) List(ctx context.Context) ([]Raw, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	findOptions := options.Find().SetSort(bson.D{{Key: "reportedAt", Value: -1}})
	cursor, err := s.col.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	raws := make([]Raw, 0, len(docs))
	for _, doc := range docs {
		id := ""
		if objID, ok := doc["_id"].(primitive.ObjectID); ok {
			id = objID.Hex()
		}
		raws = append(raws, Raw{ID: id, Doc: doc})
	}
	return raws, nil
}

func (s *mongoSource) Changes(ctx context.Context) (<-chan struct{}, error) {
	stream, err := s.col.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, err
	}

	ch := make(chan struct{})
	go func() {
		defer close(ch)
		defer stream.Close(context.Background())
		for stream.Next(ctx) {
			select {
			case ch <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
