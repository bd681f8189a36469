package errors

import "errors"

var (
	ErrSlotNotFound = errors.New("slot not found")

	ErrReservationNotFound = errors.New("reservation not found")

	ErrNoAvailableSeat = errors.New("no available seat")

	ErrInvalidID = errors.New("invalid reservation ID format")

	// ErrNotPending is returned by a conditional transition whose row has
	// already left PENDING.
	ErrNotPending = errors.New("reservation is not pending")

	// ErrInvariantViolation means more seats are held than the slot has.
	ErrInvariantViolation = errors.New("active reservations exceed slot capacity")
)
