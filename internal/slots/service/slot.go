package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	slotserrors "github.com/lukekoshy/doctor-booking-system/internal/slots/errors"
	"github.com/lukekoshy/doctor-booking-system/internal/slots/repository"
	"github.com/lukekoshy/doctor-booking-system/internal/slots/validator"
	"github.com/lukekoshy/doctor-booking-system/pkg/clock"
	"github.com/lukekoshy/doctor-booking-system/pkg/config"
	apperrors "github.com/lukekoshy/doctor-booking-system/pkg/errors"
	"github.com/lukekoshy/doctor-booking-system/pkg/model"
	"github.com/lukekoshy/doctor-booking-system/pkg/sanitizer"
)

type SlotService interface {
	CreateDoctor(ctx context.Context, d *model.Doctor) error
	ListDoctors(ctx context.Context, limit int, offset int64) ([]*model.Doctor, int64, error)
	CreateSlot(ctx context.Context, doctorID string, s *model.Slot) error
	ListSlots(ctx context.Context, limit int, offset int64) ([]*model.Slot, int64, error)
	GetSlot(ctx context.Context, id string) (*model.SlotAvailability, error)
}

type slotService struct {
	repo      repository.SlotRepository
	validator *validator.SlotValidator
	clock     clock.Clock
	cfg       *config.Config
}

func NewSlotService(
	repo repository.SlotRepository,
	validator *validator.SlotValidator,
	cfg *config.Config,
	clk clock.Clock,
) SlotService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &slotService{
		repo:      repo,
		validator: validator,
		clock:     clk,
		cfg:       cfg,
	}
}

func (s *slotService) CreateDoctor(ctx context.Context, d *model.Doctor) error {
	if d == nil {
		return apperrors.InvalidInput("Doctor cannot be empty")
	}

	d.Name = sanitizer.NormalizeName(d.Name)
	d.Specialization = sanitizer.NormalizeSpecialization(d.Specialization)
	d.ID = uuid.NewString()
	d.CreatedAt = s.clock.Now()

	if err := s.validator.ValidateDoctor(d); err != nil {
		s.cfg.Log.Warn("Doctor validation failed",
			"name", d.Name,
			"error", err,
		)
		return apperrors.Validation("Doctor validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.repo.CreateDoctor(ctx, d); err != nil {
		s.cfg.Log.Error("Failed to create doctor",
			"name", d.Name,
			"error", err,
		)
		return apperrors.Internal("Failed to create doctor", err)
	}

	s.cfg.Log.Info("Doctor created successfully",
		"id", d.ID,
		"name", d.Name,
		"specialization", d.Specialization,
	)
	return nil
}

func (s *slotService) ListDoctors(ctx context.Context, limit int, offset int64) ([]*model.Doctor, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return paginate(ctx, s, "doctors",
		func(ctx context.Context) (int64, error) { return s.repo.CountDoctors(ctx) },
		func(ctx context.Context) ([]*model.Doctor, error) { return s.repo.ListDoctors(ctx, limit, offset) },
	)
}

// CreateSlot defaults capacity to one seat when omitted.
func (s *slotService) CreateSlot(ctx context.Context, doctorID string, slot *model.Slot) error {
	if slot == nil {
		return apperrors.InvalidInput("Slot cannot be empty")
	}
	if !s.validator.ValidateID(doctorID) {
		return apperrors.NotFoundWithID("Doctor", doctorID)
	}

	slot.ID = uuid.NewString()
	slot.DoctorID = doctorID
	slot.DoctorName = ""
	slot.CreatedAt = s.clock.Now()
	if slot.Capacity == 0 {
		slot.Capacity = model.DefaultSlotCapacity
	}

	if err := s.validator.ValidateSlot(slot); err != nil {
		s.cfg.Log.Warn("Slot validation failed",
			"doctor_id", doctorID,
			"error", err,
		)
		return apperrors.Validation("Slot validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.repo.CreateSlot(ctx, slot); err != nil {
		if errors.Is(err, slotserrors.ErrDoctorNotFound) {
			return apperrors.NotFoundWithID("Doctor", doctorID)
		}
		s.cfg.Log.Error("Failed to create slot",
			"doctor_id", doctorID,
			"error", err,
		)
		return apperrors.Internal("Failed to create slot", err)
	}

	s.cfg.Log.Info("Slot created successfully",
		"id", slot.ID,
		"doctor_id", doctorID,
		"start_time", slot.StartTime,
		"capacity", slot.Capacity,
	)
	return nil
}

func (s *slotService) ListSlots(ctx context.Context, limit int, offset int64) ([]*model.Slot, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return paginate(ctx, s, "slots",
		func(ctx context.Context) (int64, error) { return s.repo.CountSlots(ctx) },
		func(ctx context.Context) ([]*model.Slot, error) { return s.repo.ListSlots(ctx, limit, offset) },
	)
}

// GetSlot reads the counts without the slot lock, so the figures are a
// snapshot and may be stale by the time the caller acts on them.
func (s *slotService) GetSlot(ctx context.Context, id string) (*model.SlotAvailability, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}
	if !s.validator.ValidateID(id) {
		return nil, apperrors.SlotNotFound(id, slotserrors.ErrInvalidID)
	}

	slot, err := s.repo.FindSlot(ctx, id)
	if err != nil {
		if errors.Is(err, slotserrors.ErrSlotNotFound) {
			return nil, apperrors.SlotNotFound(id, err)
		}
		s.cfg.Log.Error("Failed to get slot by ID",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve slot", err)
	}

	counts, err := s.repo.CountByStatus(ctx, id)
	if err != nil {
		s.cfg.Log.Error("Failed to count slot reservations",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve slot", err)
	}

	return model.NewSlotAvailability(slot, counts), nil
}

// paginate runs the count and the page query concurrently under one
// read deadline.
func paginate[T any](
	ctx context.Context,
	s *slotService,
	resource string,
	count func(context.Context) (int64, error),
	find func(context.Context) ([]T, error),
) ([]T, int64, error) {
	sharedCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	var total int64
	var items []T
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		total, err = count(sharedCtx)
		if err != nil {
			s.cfg.Log.Error("Failed to count "+resource, "error", err)
			errCount = apperrors.Internal("Failed to count "+resource, err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		items, err = find(sharedCtx)
		if err != nil {
			s.cfg.Log.Error("Failed to list "+resource, "error", err)
			errFind = apperrors.Internal("Failed to retrieve "+resource, err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	if items == nil {
		items = []T{}
	}
	return items, total, nil
}
