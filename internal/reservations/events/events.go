package events

import (
	"context"

	"github.com/lukekoshy/doctor-booking-system/pkg/kafka"
	"github.com/lukekoshy/doctor-booking-system/pkg/model"
)

const (
	ReservationCreated   = "reservation.created"
	ReservationConfirmed = "reservation.confirmed"
	ReservationFailed    = "reservation.failed"
	ReservationExpired   = "reservation.expired"

	SchemaVersion = "1"

	HeaderSlotID = "slot-id"
)

// Publisher announces reservation transitions after they commit.
type Publisher interface {
	Publish(ctx context.Context, eventType string, r *model.Reservation) error
}

// MessagePublisher is satisfied by *kafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type kafkaPublisher struct {
	producer MessagePublisher
	source   string
}

func NewKafkaPublisher(producer MessagePublisher, source string) Publisher {
	return &kafkaPublisher{producer: producer, source: source}
}

// Publish writes the reservation snapshot as the message value. The message
// timestamp is the moment of the transition.
func (p *kafkaPublisher) Publish(ctx context.Context, eventType string, r *model.Reservation) error {
	msg, err := kafka.NewMessage().
		WithKey(r.ID).
		WithValue(r).
		WithTimestamp(r.UpdatedAt).
		WithHeader(HeaderSlotID, r.SlotID).
		WithEventType(eventType).
		WithSource(p.source).
		WithSchemaVersion(SchemaVersion).
		WithCorrelationID(CorrelationIDFromContext(ctx)).
		Build()
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

type noopPublisher struct{}

// NewNoopPublisher is used when Kafka is disabled.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, string, *model.Reservation) error {
	return nil
}

type correlationKey struct{}

// WithCorrelationID tags ctx so published events carry the originating
// request or message id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
