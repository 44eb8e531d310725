package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

var at = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
	defer bus.Close()

	var typed, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventXPEarned, func(_ context.Context, e shared.Event) error {
		typed = append(typed, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(_ context.Context, e shared.Event) error {
		all = append(all, e.EventType())
		return errors.New("ignored")
	}))

	require.NoError(t, bus.Publish(context.Background(), shared.NewXPEarnedEvent("u-1", 10, "", at)))
	require.NoError(t, bus.Publish(context.Background(), shared.NewComboXPEarnedEvent("u-1", 5, at)))

	assert.Equal(t, []shared.EventType{shared.EventXPEarned}, typed)
	assert.Equal(t, []shared.EventType{shared.EventXPEarned, shared.EventComboXPEarned}, all)
}

func TestInMemoryEventBus_AsyncWaitCoversNestedPublish(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})
	defer bus.Close()

	var completed atomic.Int32
	require.NoError(t, bus.Subscribe(shared.EventXPEarned, func(ctx context.Context, e shared.Event) error {
		x := e.(shared.XPEarnedEvent)
		return bus.Publish(ctx, shared.NewQuestCompletedEvent(x.UserID, "q-1", "EARN_XP", "2026-10-19", at))
	}))
	require.NoError(t, bus.Subscribe(shared.EventQuestCompleted, func(context.Context, shared.Event) error {
		completed.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(ctx, shared.NewXPEarnedEvent("u-1", 1, "", at)))
	}
	cancel() // handlers run detached from the publisher's context

	bus.Wait()
	assert.Equal(t, int32(10), completed.Load())
}

func TestInMemoryEventBus_PanicIsContained(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
	defer bus.Close()

	called := false
	require.NoError(t, bus.Subscribe(shared.EventXPEarned, func(context.Context, shared.Event) error {
		panic("boom")
	}))
	require.NoError(t, bus.Subscribe(shared.EventXPEarned, func(context.Context, shared.Event) error {
		called = true
		return nil
	}))

	assert.NoError(t, bus.Publish(context.Background(), shared.NewXPEarnedEvent("u-1", 1, "", at)))
	assert.True(t, called)
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(context.Background(), shared.NewXPEarnedEvent("u-1", 1, "", at)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventXPEarned, func(context.Context, shared.Event) error { return nil }), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Publish(context.Background(), nil), ErrNilEvent)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
}

// ──────────────────────────────────────────────────────────────────────────────
// Redis bus over an in-process hub
// ──────────────────────────────────────────────────────────────────────────────

type hub struct {
	mu        sync.Mutex
	listeners []chan RemoteMessage
	failPub   bool
}

func (h *hub) Publish(_ context.Context, channel string, payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failPub {
		return errors.New("redis down")
	}
	for _, l := range h.listeners {
		l <- RemoteMessage{Channel: channel, Payload: payload}
	}
	return nil
}

func (h *hub) Listen(ctx context.Context, _ string) (<-chan RemoteMessage, error) {
	ch := make(chan RemoteMessage, 64)
	h.mu.Lock()
	h.listeners = append(h.listeners, ch)
	h.mu.Unlock()
	return ch, nil
}

func newRedisBus(t *testing.T, h *hub, id string) *RedisEventBus {
	t.Helper()
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         h,
		InstanceID:     id,
		LocalBusConfig: InMemoryEventBusConfig{AsyncMode: false},
		Logger:         logger.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestRedisEventBus_FansOutToOtherInstances(t *testing.T) {
	h := &hub{}
	a := newRedisBus(t, h, "a")
	b := newRedisBus(t, h, "b")

	var mu sync.Mutex
	received := map[string][]shared.Event{}
	record := func(name string) shared.EventHandler {
		return func(_ context.Context, e shared.Event) error {
			mu.Lock()
			defer mu.Unlock()
			received[name] = append(received[name], e)
			return nil
		}
	}
	require.NoError(t, a.Subscribe(shared.EventLessonCompleted, record("a")))
	require.NoError(t, b.Subscribe(shared.EventLessonCompleted, record("b")))

	require.NoError(t, a.Publish(context.Background(), shared.NewLessonCompletedEvent("u-1", 90, 15, at)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received["b"]) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, received["a"], 1, "local delivery once, echo ignored")
	lesson := received["b"][0].(shared.LessonCompletedEvent)
	assert.Equal(t, shared.UserID("u-1"), lesson.UserID)
	assert.Equal(t, 15, lesson.DurationMinutes)
}

func TestRedisEventBus_LocalDeliveryWhenRedisFails(t *testing.T) {
	h := &hub{failPub: true}
	bus := newRedisBus(t, h, "a")

	called := false
	require.NoError(t, bus.Subscribe(shared.EventXPEarned, func(context.Context, shared.Event) error {
		called = true
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), shared.NewXPEarnedEvent("u-1", 5, "", at)))
	assert.True(t, called)
}

func TestRedisEventBus_IgnoresGarbage(t *testing.T) {
	h := &hub{}
	bus := newRedisBus(t, h, "a")

	var calls atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(context.Context, shared.Event) error {
		calls.Add(1)
		return nil
	}))

	require.NoError(t, h.Publish(context.Background(), "progress:events:x", []byte("not json")))
	require.NoError(t, h.Publish(context.Background(), "progress:events:x", []byte(`{"origin":"b","envelope":{"type":"nope","payload":{}}}`)))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
