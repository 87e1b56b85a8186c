package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spicery/db"
	"spicery/errs"
	"spicery/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository stores one document per user in the carts collection.
// Each mutation is a single FindOneAndUpdate with an aggregation pipeline:
// the first stage rewrites the items array in place and the second stage
// recomputes the totals from the rewritten array, so concurrent requests
// against the same cart serialize on the document instead of overwriting
// each other.
type MongoRepository struct {
	carts   *mongo.Collection
	coupons *mongo.Collection
}

func NewMongoRepository(store *db.Store) *MongoRepository {
	return &MongoRepository{carts: store.Carts, coupons: store.Coupons}
}

func lit(v any) bson.M { return bson.M{"$literal": v} }

var currentItems = bson.M{"$ifNull": bson.A{"$items", bson.A{}}}

// totalsStage recomputes the derived counters from the items array.
var totalsStage = bson.D{{Key: "$set", Value: bson.M{
	"totalItems": bson.M{"$sum": "$items.quantity"},
	"totalAmount": bson.M{"$round": bson.A{
		bson.M{"$sum": bson.M{"$map": bson.M{
			"input": "$items",
			"as":    "it",
			"in":    bson.M{"$multiply": bson.A{"$$it.quantity", "$$it.unitPrice"}},
		}}},
		2,
	}},
	"createdAt": bson.M{"$ifNull": bson.A{"$createdAt", "$$NOW"}},
	"updatedAt": "$$NOW",
}}}

func itemsStage(items any) bson.D {
	return bson.D{{Key: "$set", Value: bson.M{"items": items}}}
}

func after() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

func (r *MongoRepository) Get(ctx context.Context, userID string) (*models.Cart, error) {
	var c models.Cart
	err := r.carts.FindOne(ctx, bson.M{"userId": userID}).Decode(&c)
	if db.IsNotFound(err) {
		return models.EmptyCart(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return normalize(&c), nil
}

func (r *MongoRepository) AddLine(ctx context.Context, userID string, line models.CartItem) (*models.Cart, error) {
	present := bson.M{"$in": bson.A{
		lit(line.ProductID),
		bson.M{"$ifNull": bson.A{"$items.productId", bson.A{}}},
	}}
	merged := bson.M{"$map": bson.M{
		"input": currentItems,
		"as":    "it",
		"in": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$$it.productId", lit(line.ProductID)}},
			bson.M{"$mergeObjects": bson.A{
				"$$it",
				bson.M{"quantity": bson.M{"$add": bson.A{"$$it.quantity", line.Quantity}}},
			}},
			"$$it",
		}},
	}}
	appended := bson.M{"$concatArrays": bson.A{currentItems, bson.A{lit(line)}}}

	pipeline := mongo.Pipeline{
		itemsStage(bson.M{"$cond": bson.A{present, merged, appended}}),
		totalsStage,
	}
	opts := after().SetUpsert(true)

	var c models.Cart
	err := r.carts.FindOneAndUpdate(ctx, bson.M{"userId": userID}, pipeline, opts).Decode(&c)
	if db.IsDuplicateKeyError(err) {
		// Two first-time upserts raced on the unique userId index; the
		// loser retries against the document the winner created.
		err = r.carts.FindOneAndUpdate(ctx, bson.M{"userId": userID}, pipeline, opts).Decode(&c)
	}
	if err != nil {
		return nil, err
	}
	return normalize(&c), nil
}

func (r *MongoRepository) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*models.Cart, error) {
	updated := bson.M{"$map": bson.M{
		"input": "$items",
		"as":    "it",
		"in": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$$it.productId", lit(productID)}},
			bson.M{"$mergeObjects": bson.A{"$$it", bson.M{"quantity": lit(quantity)}}},
			"$$it",
		}},
	}}
	pipeline := mongo.Pipeline{itemsStage(updated), totalsStage}
	filter := bson.M{"userId": userID, "items.productId": productID}

	var c models.Cart
	err := r.carts.FindOneAndUpdate(ctx, filter, pipeline, after()).Decode(&c)
	if db.IsNotFound(err) {
		return nil, errs.ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return normalize(&c), nil
}

func (r *MongoRepository) RemoveLine(ctx context.Context, userID, productID string) (*models.Cart, error) {
	remaining := bson.M{"$filter": bson.M{
		"input": currentItems,
		"as":    "it",
		"cond":  bson.M{"$ne": bson.A{"$$it.productId", lit(productID)}},
	}}
	pipeline := mongo.Pipeline{itemsStage(remaining), totalsStage}

	var c models.Cart
	err := r.carts.FindOneAndUpdate(ctx, bson.M{"userId": userID}, pipeline, after()).Decode(&c)
	if db.IsNotFound(err) {
		return models.EmptyCart(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return normalize(&c), nil
}

func (r *MongoRepository) Clear(ctx context.Context, userID string) (*models.Cart, error) {
	update := bson.M{"$set": bson.M{
		"items":       bson.A{},
		"totalItems":  0,
		"totalAmount": 0.0,
		"updatedAt":   time.Now().UTC(),
	}}

	var c models.Cart
	err := r.carts.FindOneAndUpdate(ctx, bson.M{"userId": userID}, update, after()).Decode(&c)
	if db.IsNotFound(err) {
		return models.EmptyCart(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return normalize(&c), nil
}

func (r *MongoRepository) Claim(ctx context.Context, userID string, lines []models.CartItem) (*models.Cart, error) {
	if len(lines) == 0 {
		return r.Get(ctx, userID)
	}
	present := make(bson.A, 0, len(lines))
	claimed := make(bson.A, 0, len(lines))
	for _, l := range lines {
		present = append(present, bson.M{"items": bson.M{"$elemMatch": bson.M{
			"productId": l.ProductID,
			"quantity":  bson.M{"$gte": l.Quantity},
		}}})
		claimed = append(claimed, bson.M{
			"case": bson.M{"$eq": bson.A{"$$it.productId", lit(l.ProductID)}},
			"then": l.Quantity,
		})
	}

	reduced := bson.M{"$map": bson.M{
		"input": "$items",
		"as":    "it",
		"in": bson.M{"$mergeObjects": bson.A{"$$it", bson.M{"quantity": bson.M{"$subtract": bson.A{
			"$$it.quantity",
			bson.M{"$switch": bson.M{"branches": claimed, "default": 0}},
		}}}}},
	}}
	kept := bson.M{"$filter": bson.M{
		"input": "$items",
		"as":    "it",
		"cond":  bson.M{"$gt": bson.A{"$$it.quantity", 0}},
	}}
	pipeline := mongo.Pipeline{itemsStage(reduced), itemsStage(kept), totalsStage}
	filter := bson.M{"userId": userID, "$and": present}

	var c models.Cart
	err := r.carts.FindOneAndUpdate(ctx, filter, pipeline, after()).Decode(&c)
	if db.IsNotFound(err) {
		return nil, errs.ErrCartChanged
	}
	if err != nil {
		return nil, err
	}
	return normalize(&c), nil
}

// FindCoupon implements CouponBook on the coupons collection.
func (r *MongoRepository) FindCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := r.coupons.FindOne(ctx, bson.M{"code": code}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrInvalidCoupon
	}
	if err != nil {
		return nil, fmt.Errorf("find coupon: %w", err)
	}
	return &c, nil
}

// SaveCoupon upserts a coupon by code.
func (r *MongoRepository) SaveCoupon(ctx context.Context, c models.Coupon) error {
	c.Code = NormalizeCoupon(c.Code)
	_, err := r.coupons.ReplaceOne(ctx, bson.M{"code": c.Code}, c, options.Replace().SetUpsert(true))
	return err
}

func normalize(c *models.Cart) *models.Cart {
	if c.Items == nil {
		c.Items = []models.CartItem{}
	}
	return c
}
