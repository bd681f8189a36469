// Package reclaimer returns seats held by PENDING reservations whose grace
// period ran out. Per-reservation timers handle the common case; a periodic
// sweep catches anything the timers missed, including reservations admitted
// before a restart.
package reclaimer

import (
	"context"
	"sync"
	"time"

	"github.com/lukekoshy/doctor-booking-system/internal/reservations/events"
	"github.com/lukekoshy/doctor-booking-system/pkg/clock"
	"github.com/lukekoshy/doctor-booking-system/pkg/config"
	"github.com/lukekoshy/doctor-booking-system/pkg/logger"
	"github.com/lukekoshy/doctor-booking-system/pkg/metrics"
	"github.com/lukekoshy/doctor-booking-system/pkg/model"
)

// fireSlack delays timers slightly past the deadline so the conditional
// expires_at <= now predicate holds when the timer fires.
const fireSlack = 50 * time.Millisecond

const opTimeout = 10 * time.Second

// Store is the subset of the reservation repository the reclaimer needs.
type Store interface {
	ExpireIfPending(ctx context.Context, id string, now time.Time) (*model.Reservation, error)
	ExpireStale(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error)
	ListPending(ctx context.Context, afterID string, limit int) ([]*model.Reservation, error)
}

type Reclaimer struct {
	store     Store
	publisher events.Publisher
	clock     clock.Clock
	log       *logger.Logger

	interval  time.Duration
	batchSize int
	maxArmed  int

	mu       sync.Mutex
	timers   map[string]*armedTimer
	stopped  bool
	inflight sync.WaitGroup
}

// armedTimer identifies one Arm call, so a timer replaced by a later Arm
// can tell it no longer owns the map entry.
type armedTimer struct {
	timer *time.Timer
}

type Option func(*Reclaimer)

func WithClock(c clock.Clock) Option {
	return func(r *Reclaimer) { r.clock = c }
}

func WithPublisher(p events.Publisher) Option {
	return func(r *Reclaimer) { r.publisher = p }
}

func New(store Store, cfg *config.Config, opts ...Option) *Reclaimer {
	r := &Reclaimer{
		store:     store,
		publisher: events.NewNoopPublisher(),
		clock:     clock.NewSystem(),
		log:       cfg.Log.Component("reclaimer"),
		interval:  cfg.SweepInterval,
		batchSize: cfg.SweepBatchSize,
		maxArmed:  cfg.MaxArmedTimers,
		timers:    make(map[string]*armedTimer),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.interval <= 0 {
		r.interval = config.DefaultSweepInterval
	}
	if r.batchSize <= 0 {
		r.batchSize = config.DefaultSweepBatchSize
	}
	if r.maxArmed <= 0 {
		r.maxArmed = config.DefaultMaxArmedTimers
	}
	return r
}

// Arm schedules an expiry attempt at deadline, replacing any timer already
// armed for id. Past the timer bound the reservation is left to the sweep.
func (r *Reclaimer) Arm(id string, deadline time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}

	if prev, ok := r.timers[id]; ok {
		prev.timer.Stop()
		delete(r.timers, id)
	}

	if len(r.timers) >= r.maxArmed {
		r.log.Debug("Timer bound reached, leaving reservation to the sweep",
			"reservation_id", id,
			"armed", len(r.timers),
		)
		return
	}

	delay := max(deadline.Sub(r.clock.Now()), 0) + fireSlack
	entry := &armedTimer{}
	entry.timer = time.AfterFunc(delay, func() { r.fire(id, entry) })
	r.timers[id] = entry
	metrics.SetArmedTimers(len(r.timers))
}

func (r *Reclaimer) Disarm(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.timers[id]; ok {
		entry.timer.Stop()
		delete(r.timers, id)
		metrics.SetArmedTimers(len(r.timers))
	}
}

// Armed reports how many timers are pending.
func (r *Reclaimer) Armed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

func (r *Reclaimer) fire(id string, entry *armedTimer) {
	r.mu.Lock()
	if r.stopped || r.timers[id] != entry {
		r.mu.Unlock()
		return
	}
	delete(r.timers, id)
	metrics.SetArmedTimers(len(r.timers))
	r.inflight.Add(1)
	r.mu.Unlock()
	defer r.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.store.ExpireIfPending(ctx, id, r.clock.Now())
	if err != nil {
		r.log.Error("Failed to expire reservation",
			"reservation_id", id,
			"error", err,
		)
		return
	}
	if res == nil {
		return
	}

	metrics.RecordExpired(metrics.ExpirySourceTimer, 1)
	r.announce(ctx, res)
}

// SweepOnce expires every overdue PENDING reservation in batches and returns
// how many it moved to FAILED.
func (r *Reclaimer) SweepOnce(ctx context.Context) (int, error) {
	total := 0
	for {
		batch, err := r.store.ExpireStale(ctx, r.clock.Now(), r.batchSize)
		if err != nil {
			metrics.RecordExpired(metrics.ExpirySourceSweep, total)
			return total, err
		}

		for _, res := range batch {
			r.Disarm(res.ID)
			r.announce(ctx, res)
		}
		total += len(batch)

		if len(batch) < r.batchSize {
			break
		}
		if err := ctx.Err(); err != nil {
			metrics.RecordExpired(metrics.ExpirySourceSweep, total)
			return total, err
		}
	}

	metrics.RecordExpired(metrics.ExpirySourceSweep, total)
	if total > 0 {
		r.log.Info("Sweep expired reservations", "count", total)
	}
	return total, nil
}

// Recover sweeps what expired while the process was down, then re-arms
// timers for the reservations that are still inside their grace period.
func (r *Reclaimer) Recover(ctx context.Context) (int, error) {
	if _, err := r.SweepOnce(ctx); err != nil {
		return 0, err
	}

	armed := 0
	afterID := ""
	for {
		page, err := r.store.ListPending(ctx, afterID, r.batchSize)
		if err != nil {
			return armed, err
		}
		for _, res := range page {
			r.Arm(res.ID, res.ExpiresAt)
			armed++
		}
		if len(page) < r.batchSize {
			break
		}
		afterID = page[len(page)-1].ID
	}

	r.log.Info("Expiry timers recovered", "pending", armed, "armed", r.Armed())
	return armed, nil
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reclaimer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("Reclaimer started", "sweep_interval", r.interval, "batch_size", r.batchSize)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("Reclaimer stopped")
			return nil
		case <-ticker.C:
			if _, err := r.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("Sweep failed", "error", err)
			}
		}
	}
}

// Stop cancels all armed timers and waits for expiries already running.
func (r *Reclaimer) Stop() {
	r.mu.Lock()
	r.stopped = true
	for id, entry := range r.timers {
		entry.timer.Stop()
		delete(r.timers, id)
	}
	metrics.SetArmedTimers(0)
	r.mu.Unlock()

	r.inflight.Wait()
}

func (r *Reclaimer) announce(ctx context.Context, res *model.Reservation) {
	r.log.Info("Reservation expired",
		"reservation_id", res.ID,
		"slot_id", res.SlotID,
		"expires_at", res.ExpiresAt,
	)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()

	if err := r.publisher.Publish(ctx, events.ReservationExpired, res); err != nil {
		r.log.Warn("Failed to publish reservation event",
			"reservation_id", res.ID,
			"event_type", events.ReservationExpired,
			"error", err,
		)
	}
}
