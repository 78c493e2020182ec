package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/indieinfra/pantry/asset"
	"github.com/indieinfra/pantry/config"
)

// MongoIndex stores one document per asset with the asset id as _id, so the
// server's unique _id index is the duplicate check.
type MongoIndex struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoIndex(cfg *config.MongoIndexStrategy) (*MongoIndex, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mongo index config is nil")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultMongoTimeout
	}
	collection := cfg.Collection
	if collection == "" {
		collection = config.DefaultMongoCollection
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	idx := newMongoIndexWithCollection(client.Database(cfg.Database).Collection(collection), timeout)
	idx.client = client

	if err := idx.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return idx, nil
}

func newMongoIndexWithCollection(coll *mongo.Collection, timeout time.Duration) *MongoIndex {
	return &MongoIndex{coll: coll, timeout: timeout}
}

func (m *MongoIndex) ensureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "source", Value: 1}, {Key: "type", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create mongo indexes: %w", err)
	}
	return nil
}

func (m *MongoIndex) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.timeout)
}

func (m *MongoIndex) Insert(ctx context.Context, a *asset.MediaAsset) error {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	if _, err := m.coll.InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", asset.ErrDuplicateID, a.ID)
		}
		return fmt.Errorf("mongo insert: %w", err)
	}

	return nil
}

func (m *MongoIndex) Get(ctx context.Context, id string) (*asset.MediaAsset, error) {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	var a asset.MediaAsset
	if err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", asset.ErrNotFound, id)
		}
		return nil, fmt.Errorf("mongo get: %w", err)
	}

	return normalizeDecoded(&a), nil
}

func (m *MongoIndex) List(ctx context.Context, filter Filter) ([]*asset.MediaAsset, error) {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	query := bson.M{}
	if filter.Source != "" {
		query["source"] = filter.Source
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := m.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo list: %w", err)
	}

	var docs []*asset.MediaAsset
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo list: %w", err)
	}

	out := make([]*asset.MediaAsset, 0, len(docs))
	for _, a := range docs {
		out = append(out, normalizeDecoded(a))
	}
	return out, nil
}

func (m *MongoIndex) UpdateTags(ctx context.Context, id string, tags []string) (*asset.MediaAsset, error) {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	if tags == nil {
		tags = []string{}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var a asset.MediaAsset
	err := m.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"tags": tags}}, opts).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", asset.ErrNotFound, id)
		}
		return nil, fmt.Errorf("mongo update tags: %w", err)
	}

	return normalizeDecoded(&a), nil
}

func (m *MongoIndex) Remove(ctx context.Context, id string) error {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("mongo remove: %w", err)
	}
	return nil
}

func (m *MongoIndex) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

func normalizeDecoded(a *asset.MediaAsset) *asset.MediaAsset {
	if a.Tags == nil {
		a.Tags = []string{}
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a
}
