package model

import "time"

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "PENDING"
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusFailed    ReservationStatus = "FAILED"
)

// IsTerminal reports whether the status can no longer change.
func (s ReservationStatus) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// IsActive reports whether a reservation in this status holds a seat.
func (s ReservationStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusFailed:
		return true
	}
	return false
}

const (
	FailureExpired    = "EXPIRED"
	FailureNoCapacity = "NO_CAPACITY"
)

type Reservation struct {
	ID             string            `json:"id" bson:"_id" db:"id"`
	SlotID         string            `json:"slot_id" bson:"slot_id" db:"slot_id"`
	PatientName    string            `json:"patient_name" bson:"patient_name" db:"patient_name"`
	PatientContact *string           `json:"patient_contact,omitempty" bson:"patient_contact,omitempty" db:"patient_contact"`
	Status         ReservationStatus `json:"status" bson:"status" db:"status"`
	FailureReason  string            `json:"failure_reason,omitempty" bson:"failure_reason,omitempty" db:"failure_reason"`
	ExpiresAt      time.Time         `json:"expires_at" bson:"expires_at" db:"expires_at"`
	CreatedAt      time.Time         `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// ReservationRequest is the admission input accepted at the boundary.
type ReservationRequest struct {
	PatientName    string `json:"patient_name" validate:"required,max=200"`
	PatientContact string `json:"patient_contact,omitempty" validate:"omitempty,max=200"`
}

// ConfirmResult reports the state of a reservation after a confirm attempt.
// AlreadyProcessed is set when the reservation had left PENDING before the call.
type ConfirmResult struct {
	ID               string            `json:"id"`
	Status           ReservationStatus `json:"status"`
	FailureReason    string            `json:"failure_reason,omitempty"`
	AlreadyProcessed bool              `json:"already_processed"`
}
