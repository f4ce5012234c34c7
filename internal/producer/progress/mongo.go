package progress

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding producer progress.
const CollectionName = "producer_progress"

// MongoStore implements Store using MongoDB. One document per type, keyed by
// the numeric type id.
type MongoStore struct {
	collection *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore creates a MongoDB-backed progress store.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection(CollectionName)}
}

// Find implements Store.
func (s *MongoStore) Find(ctx context.Context, typeID int) (*Record, error) {
	var rec Record
	err := s.collection.FindOne(ctx, bson.M{"_id": typeID}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find progress for type %d: %w", typeID, err)
	}
	return &rec, nil
}

// Save implements Store.
func (s *MongoStore) Save(ctx context.Context, rec *Record) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": rec.TypeID}, rec, opts)
	if err != nil {
		return fmt.Errorf("save progress for type %d: %w", rec.TypeID, err)
	}
	return nil
}

// Delete implements Store.
func (s *MongoStore) Delete(ctx context.Context, typeID int) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": typeID})
	if err != nil {
		return fmt.Errorf("delete progress for type %d: %w", typeID, err)
	}
	return nil
}
