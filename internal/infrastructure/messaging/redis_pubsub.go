package messaging

import (
	"context"

	redisstore "github.com/alem-hub/progress-engine/internal/infrastructure/persistence/redis"
)

// RedisPubSub adapts the Redis cache client to PubSubClient.
type RedisPubSub struct {
	cache *redisstore.Cache
}

// NewRedisPubSub creates the adapter.
func NewRedisPubSub(cache *redisstore.Cache) *RedisPubSub {
	return &RedisPubSub{cache: cache}
}

// Publish implements PubSubClient.
func (p *RedisPubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.cache.Publish(ctx, channel, payload)
}

// Listen implements PubSubClient.
func (p *RedisPubSub) Listen(ctx context.Context, pattern string) (<-chan RemoteMessage, error) {
	sub := p.cache.PSubscribe(ctx, pattern)
	// Wait for the subscription confirmation so early publishes are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan RemoteMessage)
	go func() {
		defer close(out)
		defer sub.Close()

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- RemoteMessage{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
