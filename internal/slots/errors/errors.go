package errors

import "errors"

var (
	ErrSlotNotFound = errors.New("slot not found")

	ErrDoctorNotFound = errors.New("doctor not found")

	ErrInvalidID = errors.New("invalid ID format")
)
