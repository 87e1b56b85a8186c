package products

import (
	"context"

	"spicery/db"
	"spicery/errs"
	"spicery/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	products *mongo.Collection
}

func NewMongoRepository(store *db.Store) *MongoRepository {
	return &MongoRepository{products: store.Products}
}

func (r *MongoRepository) FindByID(ctx context.Context, productID string) (*models.Product, error) {
	var p models.Product
	err := r.products.FindOne(ctx, bson.M{"productId": productID}).Decode(&p)
	if db.IsNotFound(err) {
		return nil, errs.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *MongoRepository) List(ctx context.Context, category string, skip, limit int) ([]models.Product, error) {
	filter := bson.M{}
	if category != "" {
		filter["category"] = category
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cur, err := r.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	list := []models.Product{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *MongoRepository) Insert(ctx context.Context, p *models.Product) error {
	_, err := r.products.InsertOne(ctx, p)
	if db.IsDuplicateKeyError(err) {
		return errs.ErrDuplicate
	}
	return err
}
