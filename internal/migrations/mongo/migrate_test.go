package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lukekoshy/doctor-booking-system/internal/migrations/mongo/validators"
	mongotx "github.com/lukekoshy/doctor-booking-system/pkg/db/mongo"
	"github.com/lukekoshy/doctor-booking-system/pkg/logger"
)

func requiredFields(t *testing.T, validator bson.M) []string {
	t.Helper()
	schema, ok := validator["$jsonSchema"].(bson.M)
	require.True(t, ok)
	fields, ok := schema["required"].([]string)
	require.True(t, ok)
	return fields
}

func TestValidators_RequireEngineFields(t *testing.T) {
	assert.Subset(t, requiredFields(t, validators.SlotValidator), []string{"capacity", "start_time", "end_time"})
	assert.Subset(t, requiredFields(t, validators.ReservationValidator), []string{"slot_id", "status", "expires_at"})
	assert.Subset(t, requiredFields(t, validators.DoctorValidator), []string{"name"})
}

func TestRunMigration_Idempotent(t *testing.T) {
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

	dbName := "clinic_migrate_test"
	t.Cleanup(func() { _ = client.Database(dbName).Drop(context.Background()) })

	require.NoError(t, RunMigration(ctx, client, dbName, logger.Discard()))
	require.NoError(t, RunMigration(ctx, client, dbName, logger.Discard()))

	names, err := client.Database(dbName).ListCollectionNames(ctx, bson.M{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		mongotx.DoctorsCollection,
		mongotx.SlotsCollection,
		mongotx.ReservationsCollection,
	}, names)

	_, err = client.Database(dbName).Collection(mongotx.ReservationsCollection).InsertOne(ctx, bson.M{
		"_id":    "not-a-valid-reservation",
		"status": "UNKNOWN",
	})
	assert.Error(t, err)
}
