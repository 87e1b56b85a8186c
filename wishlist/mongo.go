package wishlist

import (
	"context"

	"spicery/db"
	"spicery/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	wishlists *mongo.Collection
}

func NewMongoRepository(store *db.Store) *MongoRepository {
	return &MongoRepository{wishlists: store.Wishlists}
}

func (r *MongoRepository) Get(ctx context.Context, userID string) (*models.Wishlist, error) {
	var wl models.Wishlist
	err := r.wishlists.FindOne(ctx, bson.M{"userId": userID}).Decode(&wl)
	if db.IsNotFound(err) {
		return &models.Wishlist{UserID: userID, ProductIDs: []string{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return normalize(&wl), nil
}

func (r *MongoRepository) Add(ctx context.Context, userID, productID string) (*models.Wishlist, error) {
	update := bson.M{
		"$addToSet":    bson.M{"productIds": productID},
		"$currentDate": bson.M{"updatedAt": true},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var wl models.Wishlist
	err := r.wishlists.FindOneAndUpdate(ctx, bson.M{"userId": userID}, update, opts).Decode(&wl)
	if db.IsDuplicateKeyError(err) {
		err = r.wishlists.FindOneAndUpdate(ctx, bson.M{"userId": userID}, update, opts).Decode(&wl)
	}
	if err != nil {
		return nil, err
	}
	return normalize(&wl), nil
}

func (r *MongoRepository) Remove(ctx context.Context, userID, productID string) (*models.Wishlist, error) {
	update := bson.M{
		"$pull":        bson.M{"productIds": productID},
		"$currentDate": bson.M{"updatedAt": true},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var wl models.Wishlist
	err := r.wishlists.FindOneAndUpdate(ctx, bson.M{"userId": userID}, update, opts).Decode(&wl)
	if db.IsNotFound(err) {
		return &models.Wishlist{UserID: userID, ProductIDs: []string{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return normalize(&wl), nil
}

func normalize(wl *models.Wishlist) *models.Wishlist {
	if wl.ProductIDs == nil {
		wl.ProductIDs = []string{}
	}
	return wl
}
