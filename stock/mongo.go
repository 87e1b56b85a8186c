package stock

import (
	"context"

	"spicery/db"
	"spicery/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository keeps stock on the product documents themselves.
type MongoRepository struct {
	products *mongo.Collection
}

func NewMongoRepository(store *db.Store) *MongoRepository {
	return &MongoRepository{products: store.Products}
}

func (r *MongoRepository) DecrementIfAvailable(ctx context.Context, productID string, qty int) (bool, error) {
	res, err := r.products.UpdateOne(ctx,
		bson.M{"productId": productID, "stockQuantity": bson.M{"$gte": qty}},
		bson.M{
			"$inc":         bson.M{"stockQuantity": -qty},
			"$currentDate": bson.M{"updatedAt": true},
		},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoRepository) Increment(ctx context.Context, productID string, qty int) error {
	res, err := r.products.UpdateOne(ctx,
		bson.M{"productId": productID},
		bson.M{
			"$inc":         bson.M{"stockQuantity": qty},
			"$currentDate": bson.M{"updatedAt": true},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.ErrProductNotFound
	}
	return nil
}

func (r *MongoRepository) Available(ctx context.Context, productID string) (int, error) {
	var doc struct {
		StockQuantity int `bson:"stockQuantity"`
	}
	opts := options.FindOne().SetProjection(bson.M{"stockQuantity": 1})
	err := r.products.FindOne(ctx, bson.M{"productId": productID}, opts).Decode(&doc)
	if db.IsNotFound(err) {
		return 0, errs.ErrProductNotFound
	}
	if err != nil {
		return 0, err
	}
	return doc.StockQuantity, nil
}
