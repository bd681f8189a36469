package repository

import (
	"context"
	"time"

	"github.com/lukekoshy/doctor-booking-system/pkg/model"
)

// ReservationRepository is the slot ledger and reservation store. Methods
// ending in ForUpdate take a row lock that lasts until the surrounding
// WithTx returns, and must only be called inside WithTx.
type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetSlotForUpdate(ctx context.Context, slotID string) (*model.Slot, error)
	CountActive(ctx context.Context, slotID string) (int, error)
	CountConfirmed(ctx context.Context, slotID string) (int, error)

	Create(ctx context.Context, r *model.Reservation) error
	GetForUpdate(ctx context.Context, id string) (*model.Reservation, error)
	UpdateStatus(ctx context.Context, id string, status model.ReservationStatus, reason string, now time.Time) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)

	// ExpireIfPending moves a PENDING reservation whose deadline has passed to
	// FAILED/EXPIRED. It returns nil without error when nothing changed.
	ExpireIfPending(ctx context.Context, id string, now time.Time) (*model.Reservation, error)
	// ExpireStale expires up to limit overdue PENDING reservations.
	ExpireStale(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error)
	// ListPending pages through PENDING reservations ordered by id.
	ListPending(ctx context.Context, afterID string, limit int) ([]*model.Reservation, error)
}
