package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lukekoshy/doctor-booking-system/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.messages...)
}

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestMessageBuilder(t *testing.T) {
	msg, err := NewMessage().
		WithKey("r-1").
		WithValue(map[string]string{"status": "PENDING"}).
		WithEventType("reservation.created").
		WithSource("reservations").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "r-1", msg.Key)
	assert.JSONEq(t, `{"status":"PENDING"}`, string(msg.Value))
	assert.Equal(t, "reservation.created", msg.GetEventType())
	assert.NotEmpty(t, msg.GetEventID())
	assert.NotEmpty(t, msg.Headers[HeaderTimestamp])
}

func TestMessageBuilder_EncodeFailure(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestRetryCount(t *testing.T) {
	msg := Message{}
	assert.Equal(t, 0, msg.GetRetryCount())
	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}
	assert.Equal(t, 12, msg.GetRetryCount())
	assert.Equal(t, "12", msg.Headers[HeaderRetryCount])
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, ErrorTypeUnknown, ClassifyError(nil))
	assert.Equal(t, ErrorTypeTransient, ClassifyError(errors.New("dial tcp: Connection Refused")))
	assert.Equal(t, ErrorTypeTransient, ClassifyError(context.DeadlineExceeded))
	assert.Equal(t, ErrorTypePermanent, ClassifyError(errors.New("schema mismatch")))
	assert.Equal(t, ErrorTypePermanent, ClassifyError(errors.New("something odd")))
	assert.Equal(t, ErrorTypeBusiness, ClassifyError(NewBusinessError("not found", nil)))

	assert.True(t, ShouldRetry(NewTransientError("db down", nil), 0, 3))
	assert.False(t, ShouldRetry(NewTransientError("db down", nil), 3, 3))
	assert.False(t, ShouldRetry(NewPermanentError("bad", nil), 0, 3))
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "reservations.events")

	var seenTopic string
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		seenTopic = msg.Topic
		return next(ctx, msg)
	})

	msg, err := NewMessage().WithKey("r-1").WithValue(map[string]int{"a": 1}).WithEventType("reservation.created").Build()
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), msg))

	assert.Equal(t, "reservations.events", seenTopic)
	written := w.written()
	require.Len(t, written, 1)
	assert.Equal(t, "r-1", string(written[0].Key))
	assert.Equal(t, "reservation.created", headerValue(written[0], HeaderEventType))
}

func TestProducer_Validation(t *testing.T) {
	p := newProducer(&fakeWriter{}, "t")

	assert.ErrorIs(t, p.Publish(context.Background(), Message{Value: []byte("x")}), ErrEmptyKey)
	assert.ErrorIs(t, p.Publish(context.Background(), Message{Key: "k"}), ErrEmptyValue)

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Publish(context.Background(), Message{Key: "k", Value: []byte("x")}), ErrProducerClosed)
}

func TestProducer_WriteFailureIsTransient(t *testing.T) {
	p := newProducer(&fakeWriter{err: errors.New("broker down")}, "t")
	err := p.Publish(context.Background(), Message{Key: "k", Value: []byte("x")})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeTransient, ClassifyError(err))
}

func runConsumer(t *testing.T, c *Consumer, r *fakeReader, wantCommits int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(r.commits()) == wantCommits }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	require.NoError(t, c.Close())
}

func TestConsumer_CommitsAfterSuccess(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{{Offset: 1, Key: []byte("a")}, {Offset: 2, Key: []byte("b")}}}

	var handled []string
	var mu sync.Mutex
	c := newConsumer(r, nil, "payments.captured", "reservations", func(ctx context.Context, msg Message) error {
		mu.Lock()
		handled = append(handled, msg.Key)
		mu.Unlock()
		return nil
	}, logger.Discard())

	runConsumer(t, c, r, 2)
	assert.Equal(t, []int64{1, 2}, r.commits())
	assert.Equal(t, []string{"a", "b"}, handled)
}

func TestConsumer_RetriesTransientThenDLQ(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{{Offset: 7, Key: []byte("r-1"), Value: []byte(`{}`)}}}
	dlq := &fakeWriter{}

	var attempts int
	c := newConsumer(r, dlq, "payments.captured", "reservations", func(ctx context.Context, msg Message) error {
		attempts++
		return NewTransientError("database unavailable", nil)
	}, logger.Discard())
	c.maxRetries = 2
	c.retryBackoff = time.Millisecond

	runConsumer(t, c, r, 1)

	assert.Equal(t, 3, attempts, "first attempt plus two retries")
	parked := dlq.written()
	require.Len(t, parked, 1)
	assert.Equal(t, "payments.captured", headerValue(parked[0], HeaderOriginalTopic))
	assert.Equal(t, "reservations", headerValue(parked[0], HeaderDLQGroup))
	assert.Equal(t, "2", headerValue(parked[0], HeaderRetryCount))
	assert.True(t, dlq.closed)
}

func TestConsumer_PermanentGoesStraightToDLQ(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{{Offset: 3, Key: []byte("r-9")}}}
	dlq := &fakeWriter{}

	var attempts int
	c := newConsumer(r, dlq, "payments.captured", "reservations", func(ctx context.Context, msg Message) error {
		attempts++
		return NewPermanentError("reservation not found", nil)
	}, logger.Discard())
	c.maxRetries = 5

	runConsumer(t, c, r, 1)

	assert.Equal(t, 1, attempts)
	require.Len(t, dlq.written(), 1)
}
