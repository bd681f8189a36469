// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	reservationserrors "github.com/lukekoshy/doctor-booking-system/internal/reservations/errors"
	"github.com/lukekoshy/doctor-booking-system/pkg/model"
)

var errNoTx = errors.New("row lock requested outside WithTx")

// MemoryStore is an in-process reservation repository. Row locks are
// per-row mutexes held until the enclosing WithTx returns, which mirrors
// SELECT ... FOR UPDATE closely enough to exercise admission races.
type MemoryStore struct {
	mu           sync.Mutex
	slots        map[string]*model.Slot
	reservations map[string]*model.Reservation
	slotLocks    map[string]*sync.Mutex
	rowLocks     map[string]*sync.Mutex

	// CountDelay widens the window between counting seats and inserting.
	CountDelay time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots:        make(map[string]*model.Slot),
		reservations: make(map[string]*model.Reservation),
		slotLocks:    make(map[string]*sync.Mutex),
		rowLocks:     make(map[string]*sync.Mutex),
	}
}

// AddSlot stores a one-hour slot with the given capacity and returns it.
func (m *MemoryStore) AddSlot(capacity int) *model.Slot {
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	slot := &model.Slot{
		ID:        uuid.NewString(),
		DoctorID:  uuid.NewString(),
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Capacity:  capacity,
		CreatedAt: start.Add(-24 * time.Hour),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot.ID] = slot
	return slot
}

// Put stores r as-is, bypassing admission.
func (m *MemoryStore) Put(r *model.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.reservations[r.ID] = &cp
}

// Reservations returns copies of every reservation for slotID.
func (m *MemoryStore) Reservations(slotID string) []*model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Reservation
	for _, r := range m.reservations {
		if r.SlotID == slotID {
			cp := *r
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *model.Reservation) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// CountStatus counts reservations for slotID in the given status.
func (m *MemoryStore) CountStatus(slotID string, status model.ReservationStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked(slotID, status)
}

type txKey struct{}

type memTx struct {
	held []*sync.Mutex
}

func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*memTx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{}
	defer func() {
		for i := len(tx.held) - 1; i >= 0; i-- {
			tx.held[i].Unlock()
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, tx))
}

func (m *MemoryStore) lock(ctx context.Context, mu *sync.Mutex) error {
	tx, ok := ctx.Value(txKey{}).(*memTx)
	if !ok {
		return errNoTx
	}
	mu.Lock()
	tx.held = append(tx.held, mu)
	return nil
}

func (m *MemoryStore) GetSlotForUpdate(ctx context.Context, slotID string) (*model.Slot, error) {
	m.mu.Lock()
	if _, ok := m.slots[slotID]; !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrSlotNotFound, slotID)
	}
	mu := lockFor(m.slotLocks, slotID)
	m.mu.Unlock()

	if err := m.lock(ctx, mu); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.slots[slotID]
	return &cp, nil
}

func (m *MemoryStore) CountActive(ctx context.Context, slotID string) (int, error) {
	m.mu.Lock()
	n := m.countLocked(slotID, model.StatusPending) + m.countLocked(slotID, model.StatusConfirmed)
	m.mu.Unlock()

	m.pause(ctx)
	return n, nil
}

func (m *MemoryStore) CountConfirmed(ctx context.Context, slotID string) (int, error) {
	m.mu.Lock()
	n := m.countLocked(slotID, model.StatusConfirmed)
	m.mu.Unlock()

	m.pause(ctx)
	return n, nil
}

func (m *MemoryStore) Create(_ context.Context, r *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.slots[r.SlotID]; !ok {
		return fmt.Errorf("%w: %s", reservationserrors.ErrSlotNotFound, r.SlotID)
	}
	cp := *r
	m.reservations[r.ID] = &cp
	return nil
}

func (m *MemoryStore) GetForUpdate(ctx context.Context, id string) (*model.Reservation, error) {
	m.mu.Lock()
	if _, ok := m.reservations[id]; !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrReservationNotFound, id)
	}
	mu := lockFor(m.rowLocks, id)
	m.mu.Unlock()

	if err := m.lock(ctx, mu); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.reservations[id]
	return &cp, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status model.ReservationStatus, reason string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok || r.Status != model.StatusPending {
		return fmt.Errorf("%w: %s", reservationserrors.ErrNotPending, id)
	}
	r.Status = status
	r.FailureReason = reason
	r.UpdatedAt = now
	return nil
}

func (m *MemoryStore) FindByID(_ context.Context, id string) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrReservationNotFound, id)
	}
	cp := *r
	return &cp, nil
}

// ExpireIfPending waits for the row lock like a conditional UPDATE would.
func (m *MemoryStore) ExpireIfPending(_ context.Context, id string, now time.Time) (*model.Reservation, error) {
	m.mu.Lock()
	if _, ok := m.reservations[id]; !ok {
		m.mu.Unlock()
		return nil, nil
	}
	mu := lockFor(m.rowLocks, id)
	m.mu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	return m.expire(id, now), nil
}

// ExpireStale skips rows another transaction holds, like SKIP LOCKED.
func (m *MemoryStore) ExpireStale(_ context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	m.mu.Lock()
	var ids []string
	for id, r := range m.reservations {
		if r.Status == model.StatusPending && !r.ExpiresAt.After(now) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	m.mu.Unlock()

	var out []*model.Reservation
	for _, id := range ids {
		if len(out) >= limit {
			break
		}

		m.mu.Lock()
		mu := lockFor(m.rowLocks, id)
		m.mu.Unlock()

		if !mu.TryLock() {
			continue
		}
		if r := m.expire(id, now); r != nil {
			out = append(out, r)
		}
		mu.Unlock()
	}
	return out, nil
}

func (m *MemoryStore) ListPending(_ context.Context, afterID string, limit int) ([]*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Reservation
	for id, r := range m.reservations {
		if r.Status == model.StatusPending && id > afterID {
			cp := *r
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *model.Reservation) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) expire(id string, now time.Time) *model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok || r.Status != model.StatusPending || r.ExpiresAt.After(now) {
		return nil
	}
	r.Status = model.StatusFailed
	r.FailureReason = model.FailureExpired
	r.UpdatedAt = now
	cp := *r
	return &cp
}

func (m *MemoryStore) countLocked(slotID string, status model.ReservationStatus) int {
	n := 0
	for _, r := range m.reservations {
		if r.SlotID == slotID && r.Status == status {
			n++
		}
	}
	return n
}

func (m *MemoryStore) pause(ctx context.Context) {
	if m.CountDelay <= 0 {
		return
	}
	select {
	case <-time.After(m.CountDelay):
	case <-ctx.Done():
	}
}

func lockFor(locks map[string]*sync.Mutex, id string) *sync.Mutex {
	mu, ok := locks[id]
	if !ok {
		mu = &sync.Mutex{}
		locks[id] = mu
	}
	return mu
}
