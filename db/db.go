package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Store is the Mongo handle built once at startup and passed to every
// repository.
type Store struct {
	Client *mongo.Client

	Carts       *mongo.Collection
	Products    *mongo.Collection
	Orders      *mongo.Collection
	Wishlists   *mongo.Collection
	Coupons     *mongo.Collection
	Idempotency *mongo.Collection

	log *zap.Logger
}

// Connect dials Mongo, verifies the connection and makes sure the indexes
// the repositories rely on for uniqueness exist.
func Connect(ctx context.Context, uri, database string, log *zap.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := New(client, database, log)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Info("connected to mongo", zap.String("database", database))
	return s, nil
}

// New wraps an existing client.
func New(client *mongo.Client, database string, log *zap.Logger) *Store {
	d := client.Database(database)
	return &Store{
		Client:      client,
		Carts:       d.Collection("carts"),
		Products:    d.Collection("products"),
		Orders:      d.Collection("orders"),
		Wishlists:   d.Collection("wishlists"),
		Coupons:     d.Collection("coupons"),
		Idempotency: d.Collection("idempotency"),
		log:         log,
	}
}

// EnsureIndexes creates the unique indexes that back one-cart-per-user,
// order number uniqueness and idempotency keys.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := func(name string, keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true).SetName(name)}
	}

	specs := []struct {
		coll *mongo.Collection
		idx  []mongo.IndexModel
	}{
		{s.Carts, []mongo.IndexModel{unique("unique_user", bson.D{{Key: "userId", Value: 1}})}},
		{s.Wishlists, []mongo.IndexModel{unique("unique_user", bson.D{{Key: "userId", Value: 1}})}},
		{s.Products, []mongo.IndexModel{
			unique("unique_product", bson.D{{Key: "productId", Value: 1}}),
			{Keys: bson.D{{Key: "category", Value: 1}}, Options: options.Index().SetName("category")},
		}},
		{s.Orders, []mongo.IndexModel{
			unique("unique_order_number", bson.D{{Key: "orderNumber", Value: 1}}),
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("user_recent")},
			{Keys: bson.D{{Key: "orderStatus", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("status_recent")},
		}},
		{s.Coupons, []mongo.IndexModel{unique("unique_code", bson.D{{Key: "code", Value: 1}})}},
		{s.Idempotency, []mongo.IndexModel{
			unique("unique_key", bson.D{{Key: "key", Value: 1}}),
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expires_at")},
		}},
	}

	for _, ix := range specs {
		if _, err := ix.coll.Indexes().CreateMany(ctx, ix.idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", ix.coll.Name(), err)
		}
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

// IsDuplicateKeyError reports whether err is a unique index violation.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	return mongo.IsDuplicateKeyError(err)
}

// IsNotFound reports whether err is mongo.ErrNoDocuments.
func IsNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
