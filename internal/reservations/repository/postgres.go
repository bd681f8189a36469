package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	reservationserrors "github.com/lukekoshy/doctor-booking-system/internal/reservations/errors"
	"github.com/lukekoshy/doctor-booking-system/pkg/db/postgres"
	"github.com/lukekoshy/doctor-booking-system/pkg/model"
)

const reservationColumns = `id, slot_id, patient_name, patient_contact, status, failure_reason, expires_at, created_at, updated_at`

type postgresReservationRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresReservationRepository(pool *pgxpool.Pool) ReservationRepository {
	return &postgresReservationRepository{pool: pool}
}

func (r *postgresReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return postgres.WithTx(ctx, r.pool, fn)
}

func (r *postgresReservationRepository) GetSlotForUpdate(ctx context.Context, slotID string) (*model.Slot, error) {
	const query = `SELECT id, doctor_id, start_time, end_time, capacity, created_at FROM slots WHERE id = $1 FOR UPDATE`

	var s model.Slot
	err := postgres.Conn(ctx, r.pool).QueryRow(ctx, query, slotID).
		Scan(&s.ID, &s.DoctorID, &s.StartTime, &s.EndTime, &s.Capacity, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || postgres.IsInvalidUUID(err) {
			return nil, fmt.Errorf("%w: %s", reservationserrors.ErrSlotNotFound, slotID)
		}
		return nil, fmt.Errorf("get slot for update: %w", err)
	}
	return &s, nil
}

func (r *postgresReservationRepository) CountActive(ctx context.Context, slotID string) (int, error) {
	const query = `SELECT COUNT(*) FROM reservations WHERE slot_id = $1 AND status IN ('PENDING', 'CONFIRMED')`

	var n int
	if err := postgres.Conn(ctx, r.pool).QueryRow(ctx, query, slotID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active reservations: %w", err)
	}
	return n, nil
}

func (r *postgresReservationRepository) CountConfirmed(ctx context.Context, slotID string) (int, error) {
	const query = `SELECT COUNT(*) FROM reservations WHERE slot_id = $1 AND status = 'CONFIRMED'`

	var n int
	if err := postgres.Conn(ctx, r.pool).QueryRow(ctx, query, slotID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count confirmed reservations: %w", err)
	}
	return n, nil
}

func (r *postgresReservationRepository) Create(ctx context.Context, res *model.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, slot_id, patient_name, patient_contact, status, failure_reason, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := postgres.Conn(ctx, r.pool).Exec(ctx, stmt,
		res.ID,
		res.SlotID,
		res.PatientName,
		res.PatientContact,
		string(res.Status),
		res.FailureReason,
		res.ExpiresAt,
		res.CreatedAt,
		res.UpdatedAt,
	)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s", reservationserrors.ErrSlotNotFound, res.SlotID)
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *postgresReservationRepository) GetForUpdate(ctx context.Context, id string) (*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`
	return r.findOne(ctx, query, id)
}

func (r *postgresReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *postgresReservationRepository) UpdateStatus(ctx context.Context, id string, status model.ReservationStatus, reason string, now time.Time) error {
	const stmt = `
UPDATE reservations
SET status = $2, failure_reason = $3, updated_at = $4
WHERE id = $1 AND status = 'PENDING'`

	tag, err := postgres.Conn(ctx, r.pool).Exec(ctx, stmt, id, string(status), reason, now)
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", reservationserrors.ErrNotPending, id)
	}
	return nil
}

// ExpireIfPending blocks on the row lock of an in-flight confirmation and
// re-checks status after it commits, so a confirmed row is never reset.
func (r *postgresReservationRepository) ExpireIfPending(ctx context.Context, id string, now time.Time) (*model.Reservation, error) {
	query := `
UPDATE reservations
SET status = 'FAILED', failure_reason = 'EXPIRED', updated_at = $2
WHERE id = $1 AND status = 'PENDING' AND expires_at <= $2
RETURNING ` + reservationColumns

	res, err := scanReservation(postgres.Conn(ctx, r.pool).QueryRow(ctx, query, id, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || postgres.IsInvalidUUID(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("expire reservation: %w", err)
	}
	return res, nil
}

// ExpireStale skips rows currently locked by a confirmation; the next sweep
// picks them up if they are still PENDING.
func (r *postgresReservationRepository) ExpireStale(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	query := `
UPDATE reservations
SET status = 'FAILED', failure_reason = 'EXPIRED', updated_at = $1
WHERE id IN (
	SELECT id FROM reservations
	WHERE status = 'PENDING' AND expires_at <= $1
	ORDER BY expires_at
	LIMIT $2
	FOR UPDATE SKIP LOCKED
)
AND status = 'PENDING'
RETURNING ` + reservationColumns

	return r.queryMany(ctx, "expire stale reservations", query, now, limit)
}

func (r *postgresReservationRepository) ListPending(ctx context.Context, afterID string, limit int) ([]*model.Reservation, error) {
	query := `
SELECT ` + reservationColumns + `
FROM reservations
WHERE status = 'PENDING' AND id > $1
ORDER BY id
LIMIT $2`

	if afterID == "" {
		afterID = uuid.Nil.String()
	}

	return r.queryMany(ctx, "list pending reservations", query, afterID, limit)
}

func (r *postgresReservationRepository) findOne(ctx context.Context, query, id string) (*model.Reservation, error) {
	res, err := scanReservation(postgres.Conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || postgres.IsInvalidUUID(err) {
			return nil, fmt.Errorf("%w: %s", reservationserrors.ErrReservationNotFound, id)
		}
		return nil, fmt.Errorf("find reservation: %w", err)
	}
	return res, nil
}

func (r *postgresReservationRepository) queryMany(ctx context.Context, op, query string, args ...any) ([]*model.Reservation, error) {
	rows, err := postgres.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func scanReservation(row pgx.Row) (*model.Reservation, error) {
	var (
		res    model.Reservation
		status string
	)
	err := row.Scan(
		&res.ID,
		&res.SlotID,
		&res.PatientName,
		&res.PatientContact,
		&status,
		&res.FailureReason,
		&res.ExpiresAt,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.Status = model.ReservationStatus(status)
	return &res, nil
}
