package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongomigrations "github.com/lukekoshy/doctor-booking-system/internal/migrations/mongo"
	mongotx "github.com/lukekoshy/doctor-booking-system/pkg/db/mongo"
	"github.com/lukekoshy/doctor-booking-system/pkg/logger"
)

// NewTestMongo connects to TEST_MONGO_URI (a replica set, transactions are
// required), migrates a fresh database and drops it on cleanup.
func NewTestMongo(t *testing.T) (*mongo.Client, string) {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	if err := client.Ping(ctx, nil); err != nil {
		t.Skipf("skipping Mongo integration tests: %v", err)
	}

	dbName := "clinic_test_" + uuid.NewString()[:8]
	t.Cleanup(func() { _ = client.Database(dbName).Drop(context.Background()) })

	require.NoError(t, mongomigrations.RunMigration(ctx, client, dbName, logger.Discard()))
	return client, dbName
}

// InsertMongoDoctorAndSlot seeds one doctor with one slot starting tomorrow.
func InsertMongoDoctorAndSlot(t *testing.T, ctx context.Context, db *mongo.Database, capacity int) (doctorID, slotID string) {
	t.Helper()
	doctorID = uuid.NewString()
	slotID = uuid.NewString()
	now := time.Now().UTC()

	_, err := db.Collection(mongotx.DoctorsCollection).InsertOne(ctx, bson.M{
		"_id":        doctorID,
		"name":       "Dr. Test",
		"created_at": now,
	})
	require.NoError(t, err)

	start := now.Add(24 * time.Hour).Truncate(time.Hour)
	_, err = db.Collection(mongotx.SlotsCollection).InsertOne(ctx, bson.M{
		"_id":        slotID,
		"doctor_id":  doctorID,
		"start_time": start,
		"end_time":   start.Add(30 * time.Minute),
		"capacity":   capacity,
		"lock_seq":   0,
		"created_at": now,
	})
	require.NoError(t, err)
	return doctorID, slotID
}
