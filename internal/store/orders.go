package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/database"
	"storefront/internal/models"
	"storefront/internal/pricing"
)

type Orders struct {
	client   *mongo.Client
	col      *mongo.Collection
	products *mongo.Collection
}

func NewOrders(db *mongo.Database) *Orders {
	return &Orders{
		client:   db.Client(),
		col:      db.Collection(database.OrdersCollection),
		products: db.Collection(database.ProductsCollection),
	}
}

// NewOrderRef builds the human-facing reference, e.g.
// 20250908130500-1f0c2a9b.
func NewOrderRef(now time.Time) string {
	return now.UTC().Format("20060102150405") + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Place prices o.Items from the catalog, reserves stock and inserts the
// order in one transaction. Only ProductID and Quantity of each item are
// read from the caller.
func (s *Orders) Place(ctx context.Context, o *models.Order, shipping pricing.ShippingPolicy) error {
	requested := o.Items
	now := time.Now().UTC()

	err := withTransaction(ctx, s.client, func(sessCtx mongo.SessionContext) error {
		items := make([]models.OrderItem, 0, len(requested))
		lines := make([]pricing.Line, 0, len(requested))

		for _, item := range requested {
			var raw bson.M
			err := s.products.FindOne(sessCtx, bson.M{
				"_id":       item.ProductID,
				"isDeleted": bson.M{"$ne": true},
				"isActive":  bson.M{"$ne": false},
			}).Decode(&raw)
			if errors.Is(err, mongo.ErrNoDocuments) {
				return &ProductNotFoundError{ProductID: item.ProductID}
			}
			if err != nil {
				return err
			}
			product, err := normalizeProductDocument(raw)
			if err != nil {
				return err
			}
			if !product.IsActive || product.IsDeleted {
				return &ProductNotFoundError{ProductID: item.ProductID}
			}

			if product.Stock < item.Quantity {
				return &OutOfStockError{ProductID: item.ProductID, Available: product.Stock, Requested: item.Quantity}
			}

			res, err := s.products.UpdateOne(sessCtx,
				bson.M{"_id": item.ProductID, "stock": bson.M{"$gte": item.Quantity}},
				bson.M{"$inc": bson.M{"stock": -item.Quantity}, "$set": bson.M{"updatedAt": now}},
			)
			if err != nil {
				return err
			}
			if res.MatchedCount == 0 {
				return &OutOfStockError{ProductID: item.ProductID, Available: product.Stock, Requested: item.Quantity}
			}

			unit := pricing.EffectivePrice(product.Price, product.SaleEnabled, product.SalePrice)
			items = append(items, models.OrderItem{
				ProductID: item.ProductID,
				Name:      product.Name,
				Price:     unit,
				Quantity:  item.Quantity,
				LineTotal: pricing.LineTotal(unit, item.Quantity),
			})
			lines = append(lines, pricing.Line{UnitPrice: unit, Quantity: item.Quantity})
		}

		quote := pricing.QuoteLines(lines, shipping)
		o.ID = primitive.NewObjectID()
		o.Ref = NewOrderRef(now)
		o.Items = items
		o.Subtotal = quote.Subtotal
		o.ShippingFee = quote.ShippingFee
		o.Total = quote.Total
		o.Status = models.OrderStatusPending
		o.PaymentStatus = models.PaymentStatusPending
		o.StatusHistory = []models.StatusChange{{Status: models.OrderStatusPending, At: now}}
		o.CreatedAt, o.UpdatedAt = now, now

		_, err := s.col.InsertOne(sessCtx, o)
		return err
	})
	if err != nil {
		o.Items = requested
		return translate(err)
	}
	return nil
}

func (s *Orders) Get(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	var o models.Order
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	return o, translate(err)
}

func (s *Orders) List(ctx context.Context, f models.OrderFilter) ([]models.Order, int64, error) {
	filter := bson.M{}
	if f.UserID != nil {
		filter["userId"] = *f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := s.col.Find(ctx, filter, pageOptions(f.Page, f.Limit))
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus moves the order to `to` if the transition table allows it
// and, when allowedFrom is given, only from one of those statuses. The
// write is conditional on the status read, so a concurrent change yields
// ErrConflict. Entering a restocking status returns the items to stock.
func (s *Orders) UpdateStatus(ctx context.Context, id primitive.ObjectID, to models.OrderStatus, by string, allowedFrom ...models.OrderStatus) (models.Order, error) {
	var updated models.Order

	err := withTransaction(ctx, s.client, func(sessCtx mongo.SessionContext) error {
		var current models.Order
		if err := s.col.FindOne(sessCtx, bson.M{"_id": id}).Decode(&current); err != nil {
			return err
		}
		if !statusAllowed(current.Status, allowedFrom) || !models.CanTransition(current.Status, to) {
			return ErrInvalidTransition
		}

		now := time.Now().UTC()
		err := s.col.FindOneAndUpdate(sessCtx,
			bson.M{"_id": id, "status": current.Status},
			bson.M{
				"$set":  bson.M{"status": to, "updatedAt": now},
				"$push": bson.M{"statusHistory": models.StatusChange{Status: to, At: now, By: by}},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrConflict
		}
		if err != nil {
			return err
		}

		if to.Restocks() {
			for _, item := range current.Items {
				if _, err := s.products.UpdateOne(sessCtx,
					bson.M{"_id": item.ProductID},
					bson.M{"$inc": bson.M{"stock": item.Quantity}, "$set": bson.M{"updatedAt": now}},
				); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return updated, translate(err)
}

func statusAllowed(current models.OrderStatus, allowed []models.OrderStatus) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, s := range allowed {
		if s == current {
			return true
		}
	}
	return false
}

// AttachRazorpayOrder records the gateway order as the current one and
// keeps every id ever attached, so a late webhook for an earlier gateway
// order still finds the order. Paid orders yield ErrConflict.
func (s *Orders) AttachRazorpayOrder(ctx context.Context, id primitive.ObjectID, razorpayOrderID string) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "paymentStatus": bson.M{"$ne": models.PaymentStatusPaid}},
		bson.M{
			"$set": bson.M{
				"payment.razorpayOrderId": razorpayOrderID,
				"payment.failureReason":   "",
				"paymentStatus":           models.PaymentStatusPending,
				"updatedAt":               time.Now().UTC(),
			},
			"$addToSet": bson.M{"payment.razorpayOrderIds": razorpayOrderID},
		},
	)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Orders) FindByRazorpayOrder(ctx context.Context, razorpayOrderID string) (models.Order, error) {
	var o models.Order
	err := s.col.FindOne(ctx, bson.M{"$or": []bson.M{
		{"payment.razorpayOrderIds": razorpayOrderID},
		{"payment.razorpayOrderId": razorpayOrderID},
	}}).Decode(&o)
	return o, translate(err)
}

// MarkPaid records a captured payment and confirms a pending order in the
// same transaction. captured is true only for the call that moved the
// payment to paid; repeats return the stored order and false.
func (s *Orders) MarkPaid(ctx context.Context, id primitive.ObjectID, paymentID string) (updated models.Order, captured bool, err error) {
	err = withTransaction(ctx, s.client, func(sessCtx mongo.SessionContext) error {
		now := time.Now().UTC()
		res, err := s.col.UpdateOne(sessCtx,
			bson.M{"_id": id, "paymentStatus": bson.M{"$ne": models.PaymentStatusPaid}},
			bson.M{"$set": bson.M{
				"paymentStatus":             models.PaymentStatusPaid,
				"payment.razorpayPaymentId": paymentID,
				"payment.paidAt":            now,
				"payment.failureReason":     "",
				"updatedAt":                 now,
			}},
		)
		if err != nil {
			return err
		}
		captured = res.ModifiedCount == 1

		if captured {
			_, err = s.col.UpdateOne(sessCtx,
				bson.M{"_id": id, "status": models.OrderStatusPending},
				bson.M{
					"$set":  bson.M{"status": models.OrderStatusConfirmed, "updatedAt": now},
					"$push": bson.M{"statusHistory": models.StatusChange{Status: models.OrderStatusConfirmed, At: now, By: "payment"}},
				},
			)
			if err != nil {
				return err
			}
		}
		return s.col.FindOne(sessCtx, bson.M{"_id": id}).Decode(&updated)
	})
	if err != nil {
		return models.Order{}, false, translate(err)
	}
	return updated, captured, nil
}

func (s *Orders) MarkPaymentFailed(ctx context.Context, id primitive.ObjectID, reason string) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "paymentStatus": models.PaymentStatusPending},
		bson.M{"$set": bson.M{
			"paymentStatus":         models.PaymentStatusFailed,
			"payment.failureReason": reason,
			"updatedAt":             time.Now().UTC(),
		}},
	)
	return translate(err)
}

// MarkRefunded moves a paid order to refunded. refunded is false when the
// order was not paid or was already refunded.
func (s *Orders) MarkRefunded(ctx context.Context, id primitive.ObjectID, refundID string) (updated models.Order, refunded bool, err error) {
	now := time.Now().UTC()
	err = s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "paymentStatus": models.PaymentStatusPaid},
		bson.M{"$set": bson.M{
			"paymentStatus":            models.PaymentStatusRefunded,
			"payment.razorpayRefundId": refundID,
			"payment.refundedAt":       now,
			"updatedAt":                now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		o, gerr := s.Get(ctx, id)
		return o, false, gerr
	}
	if err != nil {
		return models.Order{}, false, translate(err)
	}
	return updated, true, nil
}

func (s *Orders) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
