package reclaimer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/lukekoshy/doctor-booking-system/pkg/model"
)

const reservationColumns = `id, slot_id, patient_name, patient_contact, status, failure_reason, expires_at, created_at, updated_at`

// SQLStore is a database/sql Store for the one-shot batch reclaimer. With
// tracing enabled every query is recorded as an X-Ray subsegment.
type SQLStore struct {
	db *sqlx.DB
}

func OpenSQLStore(ctx context.Context, dsn string, maxConns int, tracing bool) (*SQLStore, error) {
	var (
		db  *sqlx.DB
		err error
	)
	if tracing {
		var raw *sql.DB
		raw, err = xray.SQLContext("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open traced database: %w", err)
		}
		db = sqlx.NewDb(raw, "postgres")
	} else {
		db, err = sqlx.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
	}

	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewSQLStore(db), nil
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) ExpireIfPending(ctx context.Context, id string, now time.Time) (res *model.Reservation, err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "SQLStore.ExpireIfPending")
	if seg != nil {
		defer func() { seg.Close(err) }()
	}

	query := `
		UPDATE reservations
		SET status = 'FAILED', failure_reason = 'EXPIRED', updated_at = $2
		WHERE id = $1 AND status = 'PENDING' AND expires_at <= $2
		RETURNING ` + reservationColumns

	var r model.Reservation
	if err := s.db.GetContext(ctx, &r, query, id, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("expire reservation: %w", err)
	}
	return &r, nil
}

// ExpireStale skips rows locked by an in-flight confirmation; the next sweep
// re-evaluates them.
func (s *SQLStore) ExpireStale(ctx context.Context, now time.Time, limit int) (expired []*model.Reservation, err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "SQLStore.ExpireStale")
	if seg != nil {
		defer func() { seg.Close(err) }()
	}

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

	if err := s.db.SelectContext(ctx, &expired, query, now, limit); err != nil {
		return nil, fmt.Errorf("expire stale reservations: %w", err)
	}
	return expired, nil
}

func (s *SQLStore) ListPending(ctx context.Context, afterID string, limit int) (pending []*model.Reservation, err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "SQLStore.ListPending")
	if seg != nil {
		defer func() { seg.Close(err) }()
	}

	if afterID == "" {
		afterID = uuid.Nil.String()
	}

	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = 'PENDING' AND id > $1
		ORDER BY id
		LIMIT $2`

	if err := s.db.SelectContext(ctx, &pending, query, afterID, limit); err != nil {
		return nil, fmt.Errorf("list pending reservations: %w", err)
	}
	return pending, nil
}
