package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	reservationserrors "github.com/lukekoshy/doctor-booking-system/internal/reservations/errors"
	"github.com/lukekoshy/doctor-booking-system/internal/reservations/events"
	"github.com/lukekoshy/doctor-booking-system/internal/reservations/repository"
	"github.com/lukekoshy/doctor-booking-system/internal/reservations/validator"
	"github.com/lukekoshy/doctor-booking-system/pkg/clock"
	"github.com/lukekoshy/doctor-booking-system/pkg/config"
	apperrors "github.com/lukekoshy/doctor-booking-system/pkg/errors"
	"github.com/lukekoshy/doctor-booking-system/pkg/metrics"
	"github.com/lukekoshy/doctor-booking-system/pkg/model"
	"github.com/lukekoshy/doctor-booking-system/pkg/sanitizer"
)

const publishTimeout = 5 * time.Second

type ReservationService interface {
	Create(ctx context.Context, slotID string, req *model.ReservationRequest) (*model.Reservation, error)
	Confirm(ctx context.Context, id string) (*model.ConfirmResult, error)
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
}

// ExpiryScheduler arms and disarms per-reservation deadline timers.
type ExpiryScheduler interface {
	Arm(id string, deadline time.Time)
	Disarm(id string)
}

type noopScheduler struct{}

func (noopScheduler) Arm(string, time.Time) {}
func (noopScheduler) Disarm(string)         {}

type reservationService struct {
	repo      repository.ReservationRepository
	validator *validator.ReservationValidator
	publisher events.Publisher
	scheduler ExpiryScheduler
	clock     clock.Clock
	grace     time.Duration
	cfg       *config.Config
}

type Option func(*reservationService)

func WithClock(c clock.Clock) Option {
	return func(s *reservationService) { s.clock = c }
}

func WithScheduler(sch ExpiryScheduler) Option {
	return func(s *reservationService) { s.scheduler = sch }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *reservationService) { s.publisher = p }
}

func NewReservationService(
	repo repository.ReservationRepository,
	validator *validator.ReservationValidator,
	cfg *config.Config,
	opts ...Option,
) ReservationService {
	s := &reservationService{
		repo:      repo,
		validator: validator,
		publisher: events.NewNoopPublisher(),
		scheduler: noopScheduler{},
		clock:     clock.NewSystem(),
		grace:     cfg.ReservationGracePeriod,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.grace <= 0 {
		s.grace = config.DefaultReservationGracePeriod
	}
	return s
}

// Create admits a PENDING reservation if the slot has a free seat. The slot
// row is locked before seats are counted, so admissions for one slot run one
// at a time and the count cannot go stale before the insert commits.
func (s *reservationService) Create(ctx context.Context, slotID string, req *model.ReservationRequest) (*model.Reservation, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Reservation request cannot be empty")
	}

	s.sanitize(req)
	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Warn("Reservation request validation failed",
			"slot_id", slotID,
			"error", err,
		)
		return nil, apperrors.InvalidInput("Invalid reservation request").WithDetails(map[string]any{
			"errors": err,
		})
	}
	if !s.validator.ValidateID(slotID) {
		metrics.RecordRejected(metrics.RejectSlotNotFound)
		return nil, apperrors.SlotNotFound(slotID, reservationserrors.ErrSlotNotFound)
	}

	res := &model.Reservation{
		ID:          uuid.NewString(),
		SlotID:      slotID,
		PatientName: req.PatientName,
		Status:      model.StatusPending,
	}
	if req.PatientContact != "" {
		contact := req.PatientContact
		res.PatientContact = &contact
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		slot, err := s.repo.GetSlotForUpdate(txCtx, slotID)
		if err != nil {
			return err
		}

		active, err := s.repo.CountActive(txCtx, slotID)
		if err != nil {
			return err
		}

		if active > slot.Capacity {
			return s.invariantViolation(slot, active, "active")
		}
		if active >= slot.Capacity {
			return fmt.Errorf("%w: slot %s holds %d of %d", reservationserrors.ErrNoAvailableSeat, slotID, active, slot.Capacity)
		}

		now := s.clock.Now()
		res.CreatedAt = now
		res.UpdatedAt = now
		res.ExpiresAt = now.Add(s.grace)

		return s.repo.Create(txCtx, res)
	})
	if err != nil {
		return nil, s.mapCreateError(slotID, err)
	}

	s.scheduler.Arm(res.ID, res.ExpiresAt)
	metrics.RecordAdmitted()
	s.publish(ctx, events.ReservationCreated, res)

	s.cfg.Log.Info("Reservation admitted",
		"reservation_id", res.ID,
		"slot_id", slotID,
		"expires_at", res.ExpiresAt,
	)

	return res, nil
}

// Confirm finalizes a PENDING reservation. A reservation that already left
// PENDING is reported with AlreadyProcessed and is not modified. Only
// CONFIRMED reservations count against capacity here.
func (s *reservationService) Confirm(ctx context.Context, id string) (*model.ConfirmResult, error) {
	if !s.validator.ValidateID(id) {
		return nil, apperrors.ReservationNotFound(id, reservationserrors.ErrReservationNotFound)
	}

	var (
		result     *model.ConfirmResult
		transition *model.Reservation
	)

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		result, transition = nil, nil

		res, err := s.repo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		if res.Status != model.StatusPending {
			result = &model.ConfirmResult{
				ID:               res.ID,
				Status:           res.Status,
				FailureReason:    res.FailureReason,
				AlreadyProcessed: true,
			}
			return nil
		}

		slot, err := s.repo.GetSlotForUpdate(txCtx, res.SlotID)
		if err != nil {
			if errors.Is(err, reservationserrors.ErrSlotNotFound) {
				metrics.RecordInvariantViolation()
				s.cfg.Log.Error("Reservation references a missing slot",
					"reservation_id", id,
					"slot_id", res.SlotID,
				)
				return fmt.Errorf("%w: reservation %s references missing slot %s", reservationserrors.ErrInvariantViolation, id, res.SlotID)
			}
			return err
		}

		confirmed, err := s.repo.CountConfirmed(txCtx, res.SlotID)
		if err != nil {
			return err
		}
		if confirmed > slot.Capacity {
			return s.invariantViolation(slot, confirmed, "confirmed")
		}

		status, reason := model.StatusConfirmed, ""
		if confirmed >= slot.Capacity {
			status, reason = model.StatusFailed, model.FailureNoCapacity
		}

		now := s.clock.Now()
		if err := s.repo.UpdateStatus(txCtx, id, status, reason, now); err != nil {
			return err
		}

		res.Status = status
		res.FailureReason = reason
		res.UpdatedAt = now
		transition = res
		result = &model.ConfirmResult{
			ID:            res.ID,
			Status:        status,
			FailureReason: reason,
		}
		return nil
	})
	if err != nil {
		return nil, s.mapConfirmError(id, err)
	}

	metrics.RecordConfirm(string(result.Status), result.AlreadyProcessed)

	if transition == nil {
		s.cfg.Log.Info("Reservation already processed",
			"reservation_id", id,
			"status", result.Status,
		)
		return result, nil
	}

	s.scheduler.Disarm(id)
	eventType := events.ReservationConfirmed
	if transition.Status == model.StatusFailed {
		eventType = events.ReservationFailed
	}
	s.publish(ctx, eventType, transition)

	s.cfg.Log.Info("Reservation confirmation processed",
		"reservation_id", id,
		"slot_id", transition.SlotID,
		"status", result.Status,
		"failure_reason", result.FailureReason,
	)

	return result, nil
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	if !s.validator.ValidateID(id) {
		return nil, apperrors.ReservationNotFound(id, reservationserrors.ErrInvalidID)
	}

	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrReservationNotFound) {
			return nil, apperrors.ReservationNotFound(id, err)
		}
		s.cfg.Log.Error("Failed to get reservation by ID",
			"reservation_id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}
	return res, nil
}

func (s *reservationService) sanitize(req *model.ReservationRequest) {
	req.PatientName = sanitizer.NormalizeName(req.PatientName)
	req.PatientContact = sanitizer.NormalizeContact(req.PatientContact)
}

func (s *reservationService) invariantViolation(slot *model.Slot, observed int, counted string) error {
	metrics.RecordInvariantViolation()
	s.cfg.Log.Error("Slot capacity invariant violated",
		"slot_id", slot.ID,
		"capacity", slot.Capacity,
		"observed", observed,
		"counted", counted,
	)
	return fmt.Errorf("%w: slot %s capacity %d %s %d", reservationserrors.ErrInvariantViolation, slot.ID, slot.Capacity, counted, observed)
}

func (s *reservationService) mapCreateError(slotID string, err error) error {
	switch {
	case errors.Is(err, reservationserrors.ErrSlotNotFound):
		metrics.RecordRejected(metrics.RejectSlotNotFound)
		return apperrors.SlotNotFound(slotID, err)
	case errors.Is(err, reservationserrors.ErrNoAvailableSeat):
		metrics.RecordRejected(metrics.RejectNoAvailableSeat)
		s.cfg.Log.Info("Reservation rejected, slot is full", "slot_id", slotID)
		return apperrors.NoAvailableSeat(slotID, err)
	case errors.Is(err, reservationserrors.ErrInvariantViolation):
		return apperrors.Internal("Reservation state is inconsistent", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Reservation store did not respond in time")
	case apperrors.IsAppError(err):
		return err
	default:
		s.cfg.Log.Error("Failed to create reservation",
			"slot_id", slotID,
			"error", err,
		)
		return apperrors.Internal("Failed to create reservation", err)
	}
}

func (s *reservationService) mapConfirmError(id string, err error) error {
	switch {
	case errors.Is(err, reservationserrors.ErrReservationNotFound):
		return apperrors.ReservationNotFound(id, err)
	case errors.Is(err, reservationserrors.ErrInvariantViolation):
		return apperrors.Internal("Reservation state is inconsistent", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Reservation store did not respond in time")
	case apperrors.IsAppError(err):
		return err
	default:
		s.cfg.Log.Error("Failed to confirm reservation",
			"reservation_id", id,
			"error", err,
		)
		return apperrors.Internal("Failed to confirm reservation", err)
	}
}

// publish never fails the caller; the transition has already committed.
func (s *reservationService) publish(ctx context.Context, eventType string, res *model.Reservation) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, eventType, res); err != nil {
		s.cfg.Log.Warn("Failed to publish reservation event",
			"reservation_id", res.ID,
			"event_type", eventType,
			"error", err,
		)
	}
}
