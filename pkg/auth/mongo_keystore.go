package auth

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoKeyStore persists API keys in a MongoDB collection, keyed by a
// unique index on the key string.
type MongoKeyStore struct {
	coll *mongo.Collection
}

// NewMongoKeyStore wraps a collection and ensures the key index exists.
// The collection typically lives in the same database as the record
// store.
func NewMongoKeyStore(ctx context.Context, db *mongo.Database, collection string) (*MongoKeyStore, error) {
	if collection == "" {
		collection = "api_keys"
	}
	coll := db.Collection(collection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("mongo key index: %w", err)
	}
	return &MongoKeyStore{coll: coll}, nil
}

func (s *MongoKeyStore) Get(ctx context.Context, key string) (*APIKey, bool, error) {
	var rec APIKey
	err := s.coll.FindOne(ctx, bson.M{"key": key}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mongo key lookup: %w", err)
	}
	return &rec, true, nil
}

func (s *MongoKeyStore) Put(ctx context.Context, rec *APIKey) error {
	filter := bson.M{"key": rec.Key}
	_, err := s.coll.ReplaceOne(ctx, filter, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo key upsert: %w", err)
	}
	return nil
}

func (s *MongoKeyStore) Delete(ctx context.Context, key string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"key": key})
	if err != nil {
		return fmt.Errorf("mongo key delete: %w", err)
	}
	return nil
}

func (s *MongoKeyStore) List(ctx context.Context) ([]*APIKey, error) {
	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongo key list: %w", err)
	}
	defer cur.Close(ctx)

	var out []*APIKey
	for cur.Next(ctx) {
		var rec APIKey
		if err := cur.Decode(&rec); err != nil {
			return nil, fmt.Errorf("mongo key decode: %w", err)
		}
		out = append(out, &rec)
	}
	return out, cur.Err()
}

func (s *MongoKeyStore) IncrementUsage(ctx context.Context, key string, n int64) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"key": key}, bson.M{"$inc": bson.M{"usage": n}})
	if err != nil {
		return fmt.Errorf("mongo usage increment: %w", err)
	}
	return nil
}
