package orders

import (
	"context"
	"fmt"
	"time"

	"spicery/db"
	"spicery/errs"
	"spicery/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	orders *mongo.Collection
}

func NewMongoRepository(store *db.Store) *MongoRepository {
	return &MongoRepository{orders: store.Orders}
}

func (r *MongoRepository) Insert(ctx context.Context, o *models.Order) error {
	_, err := r.orders.InsertOne(ctx, o)
	if db.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", errs.ErrOrderNumberCollision, o.OrderNumber)
	}
	return err
}

func (r *MongoRepository) FindByNumber(ctx context.Context, number string) (*models.Order, error) {
	var o models.Order
	err := r.orders.FindOne(ctx, bson.M{"orderNumber": number}).Decode(&o)
	if db.IsNotFound(err) {
		return nil, errs.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *MongoRepository) CompareAndSetStatus(ctx context.Context, number string, from models.OrderStatus, entry models.StatusEntry) (bool, error) {
	res, err := r.orders.UpdateOne(ctx,
		bson.M{"orderNumber": number, "orderStatus": from},
		bson.M{
			"$set":  bson.M{"orderStatus": entry.Status, "updatedAt": entry.Timestamp},
			"$push": bson.M{"statusHistory": entry},
		},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoRepository) ClaimPayment(ctx context.Context, number string, at time.Time) (bool, error) {
	res, err := r.orders.UpdateOne(ctx,
		bson.M{
			"orderNumber":   number,
			"paymentStatus": bson.M{"$in": bson.A{models.PaymentPending, models.PaymentFailed}},
			"orderStatus":   bson.M{"$nin": bson.A{models.StatusCancelled, models.StatusReturned}},
		},
		bson.M{"$set": bson.M{"paymentStatus": models.PaymentProcessing, "updatedAt": at}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoRepository) SettlePayment(ctx context.Context, number string, to models.PaymentStatus, ref string, at time.Time) (bool, error) {
	res, err := r.orders.UpdateOne(ctx,
		bson.M{"orderNumber": number, "paymentStatus": models.PaymentProcessing},
		bson.M{"$set": bson.M{"paymentStatus": to, "paymentRef": ref, "updatedAt": at}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoRepository) AddRefund(ctx context.Context, number string, refund models.Refund) (bool, error) {
	newRefunded := bson.M{"$round": bson.A{bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$refundedAmount", 0}}, refund.Amount}}, 2}}
	filter := bson.M{
		"orderNumber":   number,
		"orderStatus":   bson.M{"$in": bson.A{models.StatusCancelled, models.StatusReturned}},
		"paymentStatus": bson.M{"$in": bson.A{models.PaymentPaid, models.PaymentPartiallyRefunded}},
		"$expr":         bson.M{"$lte": bson.A{newRefunded, "$total"}},
	}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"refundedAmount": newRefunded,
			"refunds": bson.M{"$concatArrays": bson.A{
				bson.M{"$ifNull": bson.A{"$refunds", bson.A{}}},
				bson.A{bson.M{"$literal": refund}},
			}},
			"updatedAt": refund.CreatedAt,
		}}},
		{{Key: "$set", Value: bson.M{
			"paymentStatus": bson.M{"$cond": bson.A{
				bson.M{"$gte": bson.A{"$refundedAmount", "$total"}},
				models.PaymentRefunded,
				models.PaymentPartiallyRefunded,
			}},
		}}},
	}

	res, err := r.orders.UpdateOne(ctx, filter, pipeline)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoRepository) ListByUser(ctx context.Context, userID string, skip, limit int) ([]models.Order, error) {
	return r.find(ctx, bson.M{"userId": userID}, skip, limit)
}

func (r *MongoRepository) List(ctx context.Context, status models.OrderStatus, skip, limit int) ([]models.Order, error) {
	filter := bson.M{}
	if status != "" {
		filter["orderStatus"] = status
	}
	return r.find(ctx, filter, skip, limit)
}

func (r *MongoRepository) find(ctx context.Context, filter bson.M, skip, limit int) ([]models.Order, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cur, err := r.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	orders := []models.Order{}
	if err := cur.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}
