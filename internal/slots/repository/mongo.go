package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	slotserrors "github.com/lukekoshy/doctor-booking-system/internal/slots/errors"
	"github.com/lukekoshy/doctor-booking-system/pkg/config"
	mongotx "github.com/lukekoshy/doctor-booking-system/pkg/db/mongo"
	"github.com/lukekoshy/doctor-booking-system/pkg/model"
)

type mongoSlotRepository struct {
	cfg          *config.Config
	doctors      *mongo.Collection
	slots        *mongo.Collection
	reservations *mongo.Collection
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:          cfg,
		doctors:      db.Collection(mongotx.DoctorsCollection),
		slots:        db.Collection(mongotx.SlotsCollection),
		reservations: db.Collection(mongotx.ReservationsCollection),
	}
}

func (r *mongoSlotRepository) CreateDoctor(ctx context.Context, d *model.Doctor) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.doctors.InsertOne(ctx, d); err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (r *mongoSlotRepository) ListDoctors(ctx context.Context, limit int, offset int64) ([]*model.Doctor, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.doctors.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}

	var doctors []*model.Doctor
	if err := cursor.All(ctx, &doctors); err != nil {
		return nil, fmt.Errorf("decode doctors: %w", err)
	}
	return doctors, nil
}

func (r *mongoSlotRepository) CountDoctors(ctx context.Context) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	n, err := r.doctors.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count doctors: %w", err)
	}
	return n, nil
}

// CreateSlot checks the doctor first. Doctors are never deleted, so the
// check cannot go stale before the insert.
func (r *mongoSlotRepository) CreateSlot(ctx context.Context, s *model.Slot) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	n, err := r.doctors.CountDocuments(ctx, bson.M{"_id": s.DoctorID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("check doctor: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", slotserrors.ErrDoctorNotFound, s.DoctorID)
	}

	if _, err := r.slots.InsertOne(ctx, s); err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}

func (r *mongoSlotRepository) ListSlots(ctx context.Context, limit int, offset int64) ([]*model.Slot, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.slots.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	var slots []*model.Slot
	if err := cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	if err := r.fillDoctorNames(ctx, slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *mongoSlotRepository) CountSlots(ctx context.Context) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	n, err := r.slots.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count slots: %w", err)
	}
	return n, nil
}

func (r *mongoSlotRepository) FindSlot(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var s model.Slot
	if err := r.slots.FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", slotserrors.ErrSlotNotFound, id)
		}
		return nil, fmt.Errorf("find slot: %w", err)
	}
	if err := r.fillDoctorNames(ctx, []*model.Slot{&s}); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *mongoSlotRepository) CountByStatus(ctx context.Context, slotID string) (map[model.ReservationStatus]int, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"slot_id": slotID}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "n": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.reservations.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("count reservations by status: %w", err)
	}

	var groups []struct {
		Status string `bson:"_id"`
		N      int    `bson:"n"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode status counts: %w", err)
	}

	counts := make(map[model.ReservationStatus]int, len(groups))
	for _, g := range groups {
		counts[model.ReservationStatus(g.Status)] = g.N
	}
	return counts, nil
}

func (r *mongoSlotRepository) fillDoctorNames(ctx context.Context, slots []*model.Slot) error {
	if len(slots) == 0 {
		return nil
	}

	ids := make([]string, 0, len(slots))
	for _, s := range slots {
		ids = append(ids, s.DoctorID)
	}

	cursor, err := r.doctors.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"name": 1}),
	)
	if err != nil {
		return fmt.Errorf("find slot doctors: %w", err)
	}

	var doctors []model.Doctor
	if err := cursor.All(ctx, &doctors); err != nil {
		return fmt.Errorf("decode slot doctors: %w", err)
	}

	names := make(map[string]string, len(doctors))
	for _, d := range doctors {
		names[d.ID] = d.Name
	}
	for _, s := range slots {
		s.DoctorName = names[s.DoctorID]
	}
	return nil
}
