package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	reservationserrors "github.com/lukekoshy/doctor-booking-system/internal/reservations/errors"
	"github.com/lukekoshy/doctor-booking-system/pkg/config"
	mongotx "github.com/lukekoshy/doctor-booking-system/pkg/db/mongo"
	"github.com/lukekoshy/doctor-booking-system/pkg/model"
)

type mongoReservationRepository struct {
	cfg          *config.Config
	slots        *mongo.Collection
	reservations *mongo.Collection
	txManager    mongotx.TransactionManager
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:          cfg,
		slots:        db.Collection(mongotx.SlotsCollection),
		reservations: db.Collection(mongotx.ReservationsCollection),
		txManager:    mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx)
	})
}

func (r *mongoReservationRepository) GetSlotForUpdate(ctx context.Context, slotID string) (*model.Slot, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	var s model.Slot
	err := r.slots.FindOneAndUpdate(ctx,
		bson.M{"_id": slotID},
		bson.M{"$inc": bson.M{mongotx.LockField: 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", reservationserrors.ErrSlotNotFound, slotID)
		}
		return nil, fmt.Errorf("get slot for update: %w", err)
	}
	return &s, nil
}

func (r *mongoReservationRepository) CountActive(ctx context.Context, slotID string) (int, error) {
	return r.count(ctx, bson.M{
		"slot_id": slotID,
		"status":  bson.M{"$in": []string{string(model.StatusPending), string(model.StatusConfirmed)}},
	})
}

func (r *mongoReservationRepository) CountConfirmed(ctx context.Context, slotID string) (int, error) {
	return r.count(ctx, bson.M{"slot_id": slotID, "status": string(model.StatusConfirmed)})
}

func (r *mongoReservationRepository) count(ctx context.Context, filter bson.M) (int, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	n, err := r.reservations.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count reservations: %w", err)
	}
	return int(n), nil
}

func (r *mongoReservationRepository) Create(ctx context.Context, res *model.Reservation) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.reservations.InsertOne(ctx, res); err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *mongoReservationRepository) GetForUpdate(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	var res model.Reservation
	err := r.reservations.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{mongotx.LockField: 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&res)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", reservationserrors.ErrReservationNotFound, id)
		}
		return nil, fmt.Errorf("get reservation for update: %w", err)
	}
	return &res, nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var res model.Reservation
	if err := r.reservations.FindOne(ctx, bson.M{"_id": id}).Decode(&res); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", reservationserrors.ErrReservationNotFound, id)
		}
		return nil, fmt.Errorf("find reservation: %w", err)
	}
	return &res, nil
}

func (r *mongoReservationRepository) UpdateStatus(ctx context.Context, id string, status model.ReservationStatus, reason string, now time.Time) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.reservations.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(model.StatusPending)},
		bson.M{"$set": bson.M{
			"status":         string(status),
			"failure_reason": reason,
			"updated_at":     now,
		}},
	)
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", reservationserrors.ErrNotPending, id)
	}
	return nil
}

// ExpireIfPending is a single-document conditional update. Outside a
// transaction it waits for a confirming transaction holding the document and
// re-evaluates the filter afterwards.
func (r *mongoReservationRepository) ExpireIfPending(ctx context.Context, id string, now time.Time) (*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	var res model.Reservation
	err := r.reservations.FindOneAndUpdate(ctx,
		bson.M{
			"_id":        id,
			"status":     string(model.StatusPending),
			"expires_at": bson.M{"$lte": now},
		},
		bson.M{"$set": bson.M{
			"status":         string(model.StatusFailed),
			"failure_reason": model.FailureExpired,
			"updated_at":     now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&res)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("expire reservation: %w", err)
	}
	return &res, nil
}

func (r *mongoReservationRepository) ExpireStale(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	findCtx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "expires_at", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"_id": 1})

	cursor, err := r.reservations.Find(findCtx, bson.M{
		"status":     string(model.StatusPending),
		"expires_at": bson.M{"$lte": now},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("find stale reservations: %w", err)
	}

	var ids []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(findCtx, &ids); err != nil {
		return nil, fmt.Errorf("decode stale reservations: %w", err)
	}

	var expired []*model.Reservation
	for _, doc := range ids {
		res, err := r.ExpireIfPending(ctx, doc.ID, now)
		if err != nil {
			return expired, err
		}
		if res != nil {
			expired = append(expired, res)
		}
	}
	return expired, nil
}

func (r *mongoReservationRepository) ListPending(ctx context.Context, afterID string, limit int) ([]*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.reservations.Find(ctx, bson.M{
		"status": string(model.StatusPending),
		"_id":    bson.M{"$gt": afterID},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("list pending reservations: %w", err)
	}

	var out []*model.Reservation
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode pending reservations: %w", err)
	}
	return out, nil
}
