package mongo

const (
	DoctorsCollection      = "Doctors"
	SlotsCollection        = "Slots"
	ReservationsCollection = "Reservations"
)

// LockField is bumped inside a transaction to take a write lock on a
// document. A concurrent transaction touching the same document gets a write
// conflict and is retried after the holder commits.
const LockField = "lock_seq"
