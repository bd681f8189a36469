package reclaimer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukekoshy/doctor-booking-system/internal/reservations/events"
	"github.com/lukekoshy/doctor-booking-system/internal/testutil"
	"github.com/lukekoshy/doctor-booking-system/pkg/clock"
	"github.com/lukekoshy/doctor-booking-system/pkg/config"
	"github.com/lukekoshy/doctor-booking-system/pkg/logger"
	"github.com/lukekoshy/doctor-booking-system/pkg/model"
)

var testNow = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu  sync.Mutex
	ids []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, r *model.Reservation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if eventType == events.ReservationExpired {
		p.ids = append(p.ids, r.ID)
	}
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

type fixture struct {
	store     *testutil.MemoryStore
	slot      *model.Slot
	clock     *clock.Manual
	publisher *recordingPublisher
	r         *Reclaimer
}

func newFixture(t *testing.T, mutate func(cfg *config.Config)) *fixture {
	t.Helper()

	cfg := &config.Config{
		Log:            logger.Discard(),
		SweepInterval:  10 * time.Millisecond,
		SweepBatchSize: 2,
		MaxArmedTimers: 100,
	}
	if mutate != nil {
		mutate(cfg)
	}

	store := testutil.NewMemoryStore()
	f := &fixture{
		store:     store,
		slot:      store.AddSlot(10),
		clock:     clock.NewManual(testNow),
		publisher: &recordingPublisher{},
	}
	f.r = New(store, cfg, WithClock(f.clock), WithPublisher(f.publisher))
	t.Cleanup(f.r.Stop)
	return f
}

func (f *fixture) put(status model.ReservationStatus, expiresIn time.Duration) *model.Reservation {
	res := &model.Reservation{
		ID:          uuid.NewString(),
		SlotID:      f.slot.ID,
		PatientName: "Patient",
		Status:      status,
		ExpiresAt:   f.clock.Now().Add(expiresIn),
		CreatedAt:   f.clock.Now(),
		UpdatedAt:   f.clock.Now(),
	}
	f.store.Put(res)
	return res
}

func (f *fixture) status(t *testing.T, id string) *model.Reservation {
	t.Helper()
	res, err := f.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	return res
}

func TestArm_ExpiresPendingAtDeadline(t *testing.T) {
	f := newFixture(t, nil)
	res := f.put(model.StatusPending, 20*time.Millisecond)

	f.r.Arm(res.ID, res.ExpiresAt)
	assert.Equal(t, 1, f.r.Armed())
	f.clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		return f.status(t, res.ID).Status == model.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	got := f.status(t, res.ID)
	assert.Equal(t, model.FailureExpired, got.FailureReason)
	assert.Equal(t, 0, f.r.Armed())
	assert.Eventually(t, func() bool { return f.publisher.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestArm_DoesNotOverrideConfirmed(t *testing.T) {
	f := newFixture(t, nil)
	res := f.put(model.StatusConfirmed, -time.Minute)

	f.r.Arm(res.ID, res.ExpiresAt)
	require.Eventually(t, func() bool { return f.r.Armed() == 0 }, 2*time.Second, 10*time.Millisecond)
	f.r.Stop()

	assert.Equal(t, model.StatusConfirmed, f.status(t, res.ID).Status)
	assert.Zero(t, f.publisher.count())
}

func TestDisarm_CancelsTimer(t *testing.T) {
	f := newFixture(t, nil)
	res := f.put(model.StatusPending, 0)

	f.r.Arm(res.ID, res.ExpiresAt.Add(30*time.Millisecond))
	f.r.Disarm(res.ID)
	assert.Equal(t, 0, f.r.Armed())

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, model.StatusPending, f.status(t, res.ID).Status)
}

func TestArm_RespectsTimerBound(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.MaxArmedTimers = 2 })

	for i := 0; i < 3; i++ {
		f.r.Arm(uuid.NewString(), testNow.Add(time.Hour))
	}
	assert.Equal(t, 2, f.r.Armed())
}

func TestArm_ReplacesExistingTimer(t *testing.T) {
	f := newFixture(t, nil)
	id := uuid.NewString()

	f.r.Arm(id, testNow.Add(time.Hour))
	f.r.Arm(id, testNow.Add(2*time.Hour))
	assert.Equal(t, 1, f.r.Armed())
}

func (f *fixture) entry(id string) *armedTimer {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	return f.r.timers[id]
}

func TestArm_StaleTimerKeepsReplacement(t *testing.T) {
	f := newFixture(t, nil)
	res := f.put(model.StatusPending, -time.Minute)

	f.r.Arm(res.ID, testNow.Add(time.Hour))
	stale := f.entry(res.ID)
	require.NotNil(t, stale)

	f.r.Arm(res.ID, testNow.Add(2*time.Hour))
	current := f.entry(res.ID)
	require.NotSame(t, stale, current)

	f.r.fire(res.ID, stale)
	assert.Same(t, current, f.entry(res.ID))
	assert.Equal(t, 1, f.r.Armed())
	assert.Equal(t, model.StatusPending, f.status(t, res.ID).Status)

	f.r.Disarm(res.ID)
	assert.Equal(t, 0, f.r.Armed())
	assert.False(t, current.timer.Stop(), "replacement timer should already be stopped")
}

func TestSweepOnce_ExpiresOverdueInBatches(t *testing.T) {
	f := newFixture(t, nil)

	var overdue []*model.Reservation
	for i := 0; i < 5; i++ {
		overdue = append(overdue, f.put(model.StatusPending, -time.Second))
	}
	future := f.put(model.StatusPending, time.Minute)
	confirmed := f.put(model.StatusConfirmed, -time.Minute)
	atDeadline := f.put(model.StatusPending, 0)

	n, err := f.r.SweepOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	for _, res := range append(overdue, atDeadline) {
		got := f.status(t, res.ID)
		assert.Equal(t, model.StatusFailed, got.Status)
		assert.Equal(t, model.FailureExpired, got.FailureReason)
	}
	assert.Equal(t, model.StatusPending, f.status(t, future.ID).Status)
	assert.Equal(t, model.StatusConfirmed, f.status(t, confirmed.ID).Status)
	assert.Equal(t, 6, f.publisher.count())
}

func TestSweepOnce_DisarmsSweptTimers(t *testing.T) {
	f := newFixture(t, nil)
	res := f.put(model.StatusPending, -time.Second)

	f.r.Arm(res.ID, testNow.Add(time.Hour))
	_, err := f.r.SweepOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, f.r.Armed())
}

func TestRecover_SweepsThenRearms(t *testing.T) {
	f := newFixture(t, nil)

	stale := f.put(model.StatusPending, -time.Minute)
	for i := 0; i < 3; i++ {
		f.put(model.StatusPending, time.Hour)
	}
	f.put(model.StatusConfirmed, time.Hour)

	armed, err := f.r.Recover(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 3, armed)
	assert.Equal(t, 3, f.r.Armed())
	assert.Equal(t, model.StatusFailed, f.status(t, stale.ID).Status)
}

func TestRun_SweepsUntilCancelled(t *testing.T) {
	f := newFixture(t, nil)
	res := f.put(model.StatusPending, -time.Second)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- f.r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.status(t, res.ID).Status == model.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStop_IgnoresLaterArms(t *testing.T) {
	f := newFixture(t, nil)
	f.r.Arm(uuid.NewString(), testNow.Add(time.Hour))

	f.r.Stop()
	assert.Equal(t, 0, f.r.Armed())

	f.r.Arm(uuid.NewString(), testNow.Add(time.Hour))
	assert.Equal(t, 0, f.r.Armed())
}
