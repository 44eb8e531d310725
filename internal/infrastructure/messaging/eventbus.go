// Package messaging implements the event bus of the progress engine.
// It provides an in-memory bus for a single process and a Redis pub/sub bus
// that fans events out to every worker instance.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEventBusClosed is returned when operations are attempted on a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrHandlerPanic is returned when a handler panics.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrNilHandler is returned when subscribing a nil handler.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrNilEvent is returned when publishing a nil event.
	ErrNilEvent = errors.New("event cannot be nil")
)

// Recorder receives bus metrics. *metrics.Metrics implements it.
type Recorder interface {
	EventPublished(eventType string)
	ObserveHandler(eventType string, d time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) EventPublished(string)                         {}
func (nopRecorder) ObserveHandler(string, time.Duration, error) {}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus delivers events to handlers registered in this process.
// In async mode every handler runs on a bounded worker pool and Publish
// returns immediately; handler errors are logged, never returned.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	asyncMode   bool
	workerPool  chan struct{}
	log         *logger.Logger
	recorder    Recorder
	closed      bool
	closeCh     chan struct{}
	wg          sync.WaitGroup
}

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode enables asynchronous event processing.
	AsyncMode bool

	// WorkerPoolSize is the number of concurrent handler executions.
	WorkerPoolSize int

	Logger   *logger.Logger
	Recorder Recorder
}

// DefaultInMemoryEventBusConfig returns sensible defaults.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 16,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = logger.NewNop()
	}
	if config.Recorder == nil {
		config.Recorder = nopRecorder{}
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 16
	}

	return &InMemoryEventBus{
		handlers:   make(map[shared.EventType][]shared.EventHandler),
		asyncMode:  config.AsyncMode,
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		log:        config.Logger.Named("eventbus"),
		recorder:   config.Recorder,
		closeCh:    make(chan struct{}),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.log.Debug("subscribed handler", logger.String("event_type", string(eventType)))
	return nil
}

// SubscribeAll registers a handler for all events.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.allHandlers = append(b.allHandlers, handler)
	return nil
}

// Publish sends an event to all subscribed handlers.
func (b *InMemoryEventBus) Publish(ctx context.Context, event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	handlers := make([]shared.EventHandler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	if b.asyncMode {
		// Registered under the read lock so Close cannot miss it.
		b.wg.Add(len(handlers))
	}
	b.mu.RUnlock()

	b.recorder.EventPublished(string(event.EventType()))

	if len(handlers) == 0 {
		return nil
	}

	if b.asyncMode {
		// The publisher's request may end before the handlers run.
		detached := context.WithoutCancel(ctx)
		for _, handler := range handlers {
			go b.executeAsync(detached, event, handler)
		}
		return nil
	}

	for _, handler := range handlers {
		if err := b.execute(ctx, event, handler); err != nil {
			b.log.Error("handler error",
				logger.String("event_type", string(event.EventType())),
				logger.Err(err),
			)
		}
	}
	return nil
}

func (b *InMemoryEventBus) executeAsync(ctx context.Context, event shared.Event, handler shared.EventHandler) {
	defer b.wg.Done()

	select {
	case b.workerPool <- struct{}{}:
		defer func() { <-b.workerPool }()
	case <-b.closeCh:
		return
	}

	if err := b.execute(ctx, event, handler); err != nil {
		b.log.Error("async handler error",
			logger.String("event_type", string(event.EventType())),
			logger.String("aggregate_id", event.AggregateID()),
			logger.Err(err),
		)
	}
}

func (b *InMemoryEventBus) execute(ctx context.Context, event shared.Event, handler shared.EventHandler) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
		b.recorder.ObserveHandler(string(event.EventType()), time.Since(start), err)
	}()
	return handler(ctx, event)
}

// Wait blocks until every handler started so far has finished, including
// handlers started by events those handlers published.
func (b *InMemoryEventBus) Wait() {
	b.wg.Wait()
}

// Close stops accepting events and waits for running handlers.
// Handlers still waiting for a worker slot are dropped.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	b.mu.Unlock()

	b.wg.Wait()
	b.log.Info("event bus closed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// RemoteMessage is one message received from pub/sub.
type RemoteMessage struct {
	Channel string
	Payload []byte
}

// PubSubClient is the transport used by RedisEventBus.
type PubSubClient interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Listen subscribes to channels matching pattern. The returned channel
	// closes when ctx is done or the subscription fails.
	Listen(ctx context.Context, pattern string) (<-chan RemoteMessage, error)
}

// RedisEventBus publishes events to Redis and delivers both local and
// remote events to handlers of this process. Events published here are
// dispatched locally right away and ignored when they come back from Redis.
type RedisEventBus struct {
	client     PubSubClient
	localBus   *InMemoryEventBus
	channel    func(shared.EventType) string
	pattern    string
	instanceID string
	log        *logger.Logger
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.RWMutex
	closed     bool
}

// RedisEventBusConfig contains configuration for RedisEventBus.
type RedisEventBusConfig struct {
	Client PubSubClient

	// ChannelPrefix is prepended to the event type to build the channel name.
	ChannelPrefix string

	// InstanceID identifies this process; generated when empty.
	InstanceID string

	LocalBusConfig InMemoryEventBusConfig
	Logger         *logger.Logger
}

// wireMessage is what travels over Redis.
type wireMessage struct {
	Origin   string               `json:"origin"`
	Envelope shared.EventEnvelope `json:"envelope"`
}

// NewRedisEventBus creates the bus and starts listening.
func NewRedisEventBus(config RedisEventBusConfig) (*RedisEventBus, error) {
	if config.Client == nil {
		return nil, errors.New("pubsub client is required")
	}
	if config.ChannelPrefix == "" {
		config.ChannelPrefix = "progress:events:"
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()
	}
	if config.Logger == nil {
		config.Logger = logger.NewNop()
	}
	if config.LocalBusConfig.Logger == nil {
		config.LocalBusConfig.Logger = config.Logger
	}

	prefix := config.ChannelPrefix
	ctx, cancel := context.WithCancel(context.Background())
	bus := &RedisEventBus{
		client:     config.Client,
		localBus:   NewInMemoryEventBus(config.LocalBusConfig),
		channel:    func(t shared.EventType) string { return prefix + string(t) },
		pattern:    prefix + "*",
		instanceID: config.InstanceID,
		log:        config.Logger.Named("redis-eventbus"),
		cancel:     cancel,
	}

	messages, err := bus.client.Listen(ctx, bus.pattern)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", bus.pattern, err)
	}

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		bus.subscriptionLoop(ctx, messages)
	}()

	return bus, nil
}

// Subscribe registers a handler for a specific event type.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.localBus.Subscribe(eventType, handler)
}

// SubscribeAll registers a handler for all events.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.localBus.SubscribeAll(handler)
}

// Publish sends the event to Redis and to local handlers. A Redis failure is
// logged; local delivery still happens.
func (b *RedisEventBus) Publish(ctx context.Context, event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrEventBusClosed
	}

	env, err := shared.EncodeEvent(uuid.NewString(), event)
	if err != nil {
		return err
	}
	data, err := json.Marshal(wireMessage{Origin: b.instanceID, Envelope: env})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel(event.EventType()), data); err != nil {
		b.log.Error("failed to publish to redis",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}

	return b.localBus.Publish(ctx, event)
}

func (b *RedisEventBus) subscriptionLoop(ctx context.Context, messages <-chan RemoteMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			b.handleRemote(ctx, msg)
		}
	}
}

func (b *RedisEventBus) handleRemote(ctx context.Context, msg RemoteMessage) {
	var wire wireMessage
	if err := json.Unmarshal(msg.Payload, &wire); err != nil {
		b.log.Error("failed to unmarshal event", logger.String("channel", msg.Channel), logger.Err(err))
		return
	}

	if wire.Origin == b.instanceID {
		return
	}

	event, err := shared.DecodeEvent(wire.Envelope)
	if err != nil {
		b.log.Error("failed to decode event",
			logger.String("event_type", string(wire.Envelope.Type)),
			logger.Err(err),
		)
		return
	}

	if err := b.localBus.Publish(ctx, event); err != nil {
		b.log.Error("failed to process remote event", logger.Err(err))
	}
}

// Wait blocks until local handlers are idle.
func (b *RedisEventBus) Wait() {
	b.localBus.Wait()
}

// Close stops listening and closes the local bus.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()

	return b.localBus.Close()
}
