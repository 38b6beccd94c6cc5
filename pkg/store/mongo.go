package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/crateintel/pkg/intel"
)

// MongoConfig holds connection settings for the Mongo-backed store.
type MongoConfig struct {
	// URI is the connection string (e.g. "mongodb://localhost:27017").
	URI string
	// Database name. Defaults to "crateintel".
	Database string
	// Collection name. Defaults to "records".
	Collection string
}

// Mongo is a Store backed by a MongoDB collection. Records are keyed by
// a unique (name, version, depth) index; writes replace the whole
// document.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo connects to MongoDB and ensures the natural-key index exists.
func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	if cfg.Database == "" {
		cfg.Database = "crateintel"
	}
	if cfg.Collection == "" {
		cfg.Collection = "records"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}, {Key: "version", Value: 1}, {Key: "depth", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo index: %w", err)
	}

	return &Mongo{client: client, coll: coll}, nil
}

// Lookup finds an unexpired record and atomically bumps its request
// statistics. An expired match is a miss: expired documents stay in the
// collection until a later extraction overwrites them.
func (s *Mongo) Lookup(ctx context.Context, key intel.Key) (intel.Record, bool, error) {
	filter := bson.M{
		"name":       key.Name,
		"version":    key.Version,
		"depth":      string(key.Depth),
		"expires_at": bson.M{"$gt": time.Now()},
	}
	update := bson.M{
		"$inc": bson.M{"request_count": 1},
		"$set": bson.M{"last_requested_at": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc recordDoc
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mongo lookup: %w", err)
	}
	return fromDoc(&doc), true, nil
}

// Upsert replaces the document under the record's natural key.
func (s *Mongo) Upsert(ctx context.Context, rec intel.Record) error {
	doc := toDoc(rec)
	filter := bson.M{"name": doc.Name, "version": doc.Version, "depth": doc.Depth}
	_, err := s.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo upsert: %w", err)
	}
	return nil
}

// Popular returns up to limit records ordered by request count.
func (s *Mongo) Popular(ctx context.Context, limit int) ([]intel.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "request_count", Value: -1}, {Key: "name", Value: 1}}).
		SetLimit(int64(limit))

	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo popular: %w", err)
	}
	defer cur.Close(ctx)

	var records []intel.Record
	for cur.Next(ctx) {
		var doc recordDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo decode: %w", err)
		}
		records = append(records, fromDoc(&doc))
	}
	return records, cur.Err()
}

// Database exposes the underlying database so sibling collections (API
// keys) can share the connection.
func (s *Mongo) Database() *mongo.Database {
	return s.coll.Database()
}

func (s *Mongo) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
