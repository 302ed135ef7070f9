package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/banking-core/internal/config"
	"github.com/josh-kwaku/banking-core/internal/domain"
)

func testEvent(ref string) domain.OutboxEvent {
	return domain.OutboxEvent{
		ID:          uuid.New(),
		AggregateID: ref,
		EventType:   domain.EventTransferCompleted,
		Payload:     json.RawMessage(`{"reference":"` + ref + `","amount":"2000.00"}`),
		Status:      domain.OutboxStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestRedisPublisher_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	p := NewRedisPublisher(client, "banking.transfers", 1000)
	defer p.Close()

	ev := testEvent("ref-1")
	require.NoError(t, p.Publish(context.Background(), ev))

	reader := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer reader.Close()

	msgs, err := reader.XRange(context.Background(), "banking.transfers", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, ev.ID.String(), msgs[0].Values["event_id"])
	assert.Equal(t, "transfer.completed", msgs[0].Values["event_type"])
	assert.Equal(t, "ref-1", msgs[0].Values["aggregate_id"])
	assert.JSONEq(t, string(ev.Payload), msgs[0].Values["payload"].(string))
}

func TestRedisPublisher_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	mr.Close()

	p := NewRedisPublisher(client, "banking.transfers", 0)
	defer p.Close()

	err := p.Publish(context.Background(), testEvent("ref-1"))
	require.Error(t, err)
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     config.EventsConfig
		wantErr bool
		check   func(t *testing.T, p Publisher)
	}{
		{
			name: "log backend",
			cfg:  config.EventsConfig{Backend: "log"},
			check: func(t *testing.T, p Publisher) {
				assert.IsType(t, LogPublisher{}, p)
			},
		},
		{
			name: "redis backend",
			cfg:  config.EventsConfig{Backend: "redis", RedisURL: "redis://" + mr.Addr() + "/0", Stream: "s"},
			check: func(t *testing.T, p Publisher) {
				assert.IsType(t, &RedisPublisher{}, p)
			},
		},
		{name: "bad redis url", cfg: config.EventsConfig{Backend: "redis", RedisURL: "://nope"}, wantErr: true},
		{name: "unknown backend", cfg: config.EventsConfig{Backend: "kafka"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer p.Close()
			tt.check(t, p)
		})
	}
}

func TestPublishing(t *testing.T) {
	ev := testEvent("ref-1")
	msg := publishing(ev)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, ev.ID.String(), msg.MessageId)
	assert.Equal(t, "transfer.completed", msg.Type)
	assert.Equal(t, "ref-1", msg.Headers["aggregate_id"])
	assert.Equal(t, []byte(ev.Payload), msg.Body)
}

type fakeOutbox struct {
	mu       sync.Mutex
	pending  []domain.OutboxEvent
	attempts map[uuid.UUID]int
	err      error
}

func (f *fakeOutbox) ProcessPending(_ context.Context, limit, maxAttempts int, fn func(domain.OutboxEvent) error) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}

	published := 0
	var remaining []domain.OutboxEvent
	for i, e := range f.pending {
		if i >= limit {
			remaining = append(remaining, e)
			continue
		}
		e.Attempts = f.attempts[e.ID]
		if err := fn(e); err != nil {
			f.attempts[e.ID]++
			if f.attempts[e.ID] < maxAttempts {
				remaining = append(remaining, e)
			}
			continue
		}
		published++
	}
	f.pending = remaining
	return published, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []domain.OutboxEvent
	fail      map[string]bool
}

func (f *fakePublisher) Publish(_ context.Context, e domain.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[e.AggregateID] {
		return errors.New("broker down")
	}
	f.published = append(f.published, e)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRelay_Poll(t *testing.T) {
	outbox := &fakeOutbox{
		pending:  []domain.OutboxEvent{testEvent("a"), testEvent("b"), testEvent("c")},
		attempts: map[uuid.UUID]int{},
	}
	pub := &fakePublisher{fail: map[string]bool{"b": true}}
	relay := NewRelay(outbox, pub, discardLogger(), time.Hour, 10, 2)

	assert.Equal(t, 2, relay.poll(context.Background()))
	assert.Equal(t, 2, pub.count())
	require.Len(t, outbox.pending, 1)
	assert.Equal(t, "b", outbox.pending[0].AggregateID)

	// Second failure reaches maxAttempts and the event is given up on.
	assert.Equal(t, 0, relay.poll(context.Background()))
	assert.Empty(t, outbox.pending)
}

func TestRelay_PollRespectsBatchSize(t *testing.T) {
	outbox := &fakeOutbox{
		pending:  []domain.OutboxEvent{testEvent("a"), testEvent("b"), testEvent("c")},
		attempts: map[uuid.UUID]int{},
	}
	pub := &fakePublisher{}
	relay := NewRelay(outbox, pub, discardLogger(), time.Hour, 2, 5)

	assert.Equal(t, 2, relay.poll(context.Background()))
	assert.Equal(t, 1, relay.poll(context.Background()))
	assert.Equal(t, 3, pub.count())
}

func TestRelay_PollRepositoryError(t *testing.T) {
	outbox := &fakeOutbox{err: errors.New("db down")}
	relay := NewRelay(outbox, &fakePublisher{}, discardLogger(), time.Hour, 10, 5)

	assert.Equal(t, 0, relay.poll(context.Background()))
}

func TestRelay_StartStopsOnCancel(t *testing.T) {
	outbox := &fakeOutbox{
		pending:  []domain.OutboxEvent{testEvent("a")},
		attempts: map[uuid.UUID]int{},
	}
	pub := &fakePublisher{}
	relay := NewRelay(outbox, pub, discardLogger(), 5*time.Millisecond, 10, 5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}
