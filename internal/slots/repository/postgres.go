package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	slotserrors "github.com/lukekoshy/doctor-booking-system/internal/slots/errors"
	"github.com/lukekoshy/doctor-booking-system/pkg/db/postgres"
	"github.com/lukekoshy/doctor-booking-system/pkg/model"
)

type postgresSlotRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresSlotRepository(pool *pgxpool.Pool) SlotRepository {
	return &postgresSlotRepository{pool: pool}
}

func (r *postgresSlotRepository) CreateDoctor(ctx context.Context, d *model.Doctor) error {
	const query = `INSERT INTO doctors (id, name, specialization, created_at) VALUES ($1, $2, $3, $4)`

	if _, err := postgres.Conn(ctx, r.pool).Exec(ctx, query, d.ID, d.Name, d.Specialization, d.CreatedAt); err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (r *postgresSlotRepository) ListDoctors(ctx context.Context, limit int, offset int64) ([]*model.Doctor, error) {
	const query = `SELECT id, name, specialization, created_at FROM doctors ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`

	rows, err := postgres.Conn(ctx, r.pool).Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	doctors, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Doctor])
	if err != nil {
		return nil, fmt.Errorf("scan doctors: %w", err)
	}
	return doctors, nil
}

func (r *postgresSlotRepository) CountDoctors(ctx context.Context) (int64, error) {
	var n int64
	if err := postgres.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM doctors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count doctors: %w", err)
	}
	return n, nil
}

func (r *postgresSlotRepository) CreateSlot(ctx context.Context, s *model.Slot) error {
	const query = `
		INSERT INTO slots (id, doctor_id, start_time, end_time, capacity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := postgres.Conn(ctx, r.pool).Exec(ctx, query, s.ID, s.DoctorID, s.StartTime, s.EndTime, s.Capacity, s.CreatedAt)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) || postgres.IsInvalidUUID(err) {
			return fmt.Errorf("%w: %s", slotserrors.ErrDoctorNotFound, s.DoctorID)
		}
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}

func (r *postgresSlotRepository) ListSlots(ctx context.Context, limit int, offset int64) ([]*model.Slot, error) {
	const query = `
		SELECT s.id, s.doctor_id, d.name AS doctor_name, s.start_time, s.end_time, s.capacity, s.created_at
		FROM slots s
		JOIN doctors d ON d.id = s.doctor_id
		ORDER BY s.start_time, s.id
		LIMIT $1 OFFSET $2`

	rows, err := postgres.Conn(ctx, r.pool).Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	slots, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Slot])
	if err != nil {
		return nil, fmt.Errorf("scan slots: %w", err)
	}
	return slots, nil
}

func (r *postgresSlotRepository) CountSlots(ctx context.Context) (int64, error) {
	var n int64
	if err := postgres.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM slots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count slots: %w", err)
	}
	return n, nil
}

func (r *postgresSlotRepository) FindSlot(ctx context.Context, id string) (*model.Slot, error) {
	const query = `
		SELECT s.id, s.doctor_id, d.name AS doctor_name, s.start_time, s.end_time, s.capacity, s.created_at
		FROM slots s
		JOIN doctors d ON d.id = s.doctor_id
		WHERE s.id = $1`

	rows, err := postgres.Conn(ctx, r.pool).Query(ctx, query, id)
	if err != nil {
		if postgres.IsInvalidUUID(err) {
			return nil, fmt.Errorf("%w: %s", slotserrors.ErrSlotNotFound, id)
		}
		return nil, fmt.Errorf("find slot: %w", err)
	}
	slot, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Slot])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || postgres.IsInvalidUUID(err) {
			return nil, fmt.Errorf("%w: %s", slotserrors.ErrSlotNotFound, id)
		}
		return nil, fmt.Errorf("scan slot: %w", err)
	}
	return slot, nil
}

func (r *postgresSlotRepository) CountByStatus(ctx context.Context, slotID string) (map[model.ReservationStatus]int, error) {
	const query = `SELECT status, COUNT(*) FROM reservations WHERE slot_id = $1 GROUP BY status`

	rows, err := postgres.Conn(ctx, r.pool).Query(ctx, query, slotID)
	if err != nil {
		return nil, fmt.Errorf("count reservations by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.ReservationStatus]int, 3)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[model.ReservationStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count reservations by status: %w", err)
	}
	return counts, nil
}
