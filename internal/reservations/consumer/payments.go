package consumer

import (
	"context"

	"github.com/lukekoshy/doctor-booking-system/internal/reservations/events"
	apperrors "github.com/lukekoshy/doctor-booking-system/pkg/errors"
	"github.com/lukekoshy/doctor-booking-system/pkg/kafka"
	"github.com/lukekoshy/doctor-booking-system/pkg/logger"
	"github.com/lukekoshy/doctor-booking-system/pkg/model"
)

// PaymentCaptured is the value of a payments.captured message.
type PaymentCaptured struct {
	ReservationID string `json:"reservation_id"`
	PaymentID     string `json:"payment_id,omitempty"`
}

type Confirmer interface {
	Confirm(ctx context.Context, id string) (*model.ConfirmResult, error)
}

// PaymentHandler confirms the reservation a captured payment belongs to.
type PaymentHandler struct {
	confirmer Confirmer
	log       *logger.Logger
}

func NewPaymentHandler(confirmer Confirmer, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		confirmer: confirmer,
		log:       log,
	}
}

// Handle is a kafka.MessageHandler. Unknown reservations and malformed
// payloads are permanent; anything else is retried.
func (h *PaymentHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var payment PaymentCaptured
	if err := msg.DecodeValue(&payment); err != nil {
		return err
	}
	if payment.ReservationID == "" {
		return kafka.NewPermanentError("invalid message: reservation_id is required", nil)
	}

	correlationID := msg.GetCorrelationID()
	if correlationID == "" {
		correlationID = msg.GetEventID()
	}
	ctx = events.WithCorrelationID(ctx, correlationID)

	result, err := h.confirmer.Confirm(ctx, payment.ReservationID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeReservationNotFound) || apperrors.HasCode(err, apperrors.CodeInvalidInput) {
			return kafka.NewBusinessError("confirm rejected", err).
				WithDetail("reservation_id", payment.ReservationID)
		}
		return kafka.NewTransientError("confirm failed", err).
			WithDetail("reservation_id", payment.ReservationID)
	}

	h.log.Info("Payment capture applied",
		"reservation_id", result.ID,
		"payment_id", payment.PaymentID,
		"status", result.Status,
		"failure_reason", result.FailureReason,
		"already_processed", result.AlreadyProcessed,
	)
	return nil
}
