package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotHeld is returned by Release when the lock expired or was taken over.
var ErrLockNotHeld = errors.New("lock: not held")

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out SET NX PX locks so that only one worker runs a periodic job.
type Locker struct {
	cache *Cache
}

// NewLocker creates a Locker over cache.
func NewLocker(cache *Cache) *Locker {
	return &Locker{cache: cache}
}

// Lock is a held distributed lock.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// TryAcquire takes the lock if it is free. ok is false when another holder has it.
func (l *Locker) TryAcquire(ctx context.Context, resource string, ttl time.Duration) (lock *Lock, ok bool, err error) {
	if resource == "" {
		return nil, false, ErrCacheKeyEmpty
	}
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}

	key := l.cache.Key(LockKey(resource))
	token := uuid.NewString()
	ok, err = l.cache.Client().SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return &Lock{client: l.cache.Client(), key: key, token: token}, true, nil
}

// Release frees the lock if it is still ours.
func (lk *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, lk.client, []string{lk.key}, lk.token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// TryLock adapts TryAcquire to the scheduler's lock contract.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	lock, ok, err := l.TryAcquire(ctx, name, ttl)
	if err != nil || !ok {
		return nil, ok, err
	}
	return lock.Release, true, nil
}
