package model

import "time"

const (
	DefaultSlotCapacity = 1
	MaxSlotCapacity     = 200
)

// Slot is a bookable time window. Capacity is fixed once reservations exist.
type Slot struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" db:"id" validate:"omitempty,uuid4"`
	DoctorID   string    `json:"doctor_id" bson:"doctor_id" db:"doctor_id" validate:"required,uuid4"`
	DoctorName string    `json:"doctor_name,omitempty" bson:"-" db:"doctor_name"`
	StartTime  time.Time `json:"start_time" bson:"start_time" db:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" bson:"end_time" db:"end_time" validate:"required,gtfield=StartTime"`
	Capacity   int       `json:"capacity" bson:"capacity" db:"capacity" validate:"required,min=1,max=200"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// SlotAvailability is a slot together with its per-status reservation counts.
type SlotAvailability struct {
	Slot      *Slot `json:"slot"`
	Pending   int   `json:"pending"`
	Confirmed int   `json:"confirmed"`
	Failed    int   `json:"failed"`
	Available int   `json:"available"`
}

// NewSlotAvailability derives the remaining seats from the status counts.
func NewSlotAvailability(slot *Slot, counts map[ReservationStatus]int) *SlotAvailability {
	a := &SlotAvailability{
		Slot:      slot,
		Pending:   counts[StatusPending],
		Confirmed: counts[StatusConfirmed],
		Failed:    counts[StatusFailed],
	}
	a.Available = max(0, slot.Capacity-(a.Pending+a.Confirmed))
	return a
}
