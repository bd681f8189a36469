package postgres_test

import (
	"context"
	"testing"

	migrations "github.com/lukekoshy/doctor-booking-system/internal/migrations/postgres"
	"github.com/lukekoshy/doctor-booking-system/internal/testutil"
	"github.com/lukekoshy/doctor-booking-system/pkg/logger"
)

func TestApply_RecordsMigrations(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()

	if err := migrations.Apply(ctx, pool, logger.Discard()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count < 1 {
		t.Fatalf("expected at least 1 migration, got %d", count)
	}

	if err := migrations.Apply(ctx, pool, logger.Discard()); err != nil {
		t.Fatalf("re-apply migrations: %v", err)
	}

	var count2 int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count2); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count2 != count {
		t.Fatalf("expected migration count unchanged, got %d vs %d", count2, count)
	}
}

func TestSchema_RejectsInvalidSlot(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	doctorID, _ := testutil.InsertDoctorAndSlot(t, ctx, pool, 1)

	_, err := pool.Exec(ctx, `
INSERT INTO slots (id, doctor_id, start_time, end_time, capacity)
VALUES (gen_random_uuid(), $1, NOW() + INTERVAL '2 hours', NOW() + INTERVAL '1 hour', 1)`, doctorID)
	if err == nil {
		t.Fatal("expected start < end check to reject slot")
	}

	_, err = pool.Exec(ctx, `
INSERT INTO slots (id, doctor_id, start_time, end_time, capacity)
VALUES (gen_random_uuid(), $1, NOW(), NOW() + INTERVAL '1 hour', 0)`, doctorID)
	if err == nil {
		t.Fatal("expected capacity check to reject slot")
	}
}
