package repository

import (
	"context"

	"github.com/lukekoshy/doctor-booking-system/pkg/model"
)

type SlotRepository interface {
	CreateDoctor(ctx context.Context, d *model.Doctor) error
	ListDoctors(ctx context.Context, limit int, offset int64) ([]*model.Doctor, error)
	CountDoctors(ctx context.Context) (int64, error)

	// CreateSlot returns ErrDoctorNotFound when the doctor does not exist.
	CreateSlot(ctx context.Context, s *model.Slot) error
	// ListSlots orders by start time and fills DoctorName.
	ListSlots(ctx context.Context, limit int, offset int64) ([]*model.Slot, error)
	CountSlots(ctx context.Context) (int64, error)
	FindSlot(ctx context.Context, id string) (*model.Slot, error)
	CountByStatus(ctx context.Context, slotID string) (map[model.ReservationStatus]int, error)
}
