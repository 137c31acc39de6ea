package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker gives one checkout at a time per owner. Acquire does not wait: a held lock
// fails with domain.ErrCheckoutInProgress.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, domain.ErrCheckoutInProgress
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker shares the lock between service instances. The TTL bounds how long a
// crashed holder can block the owner.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func lockKey(key string) string {
	return fmt.Sprintf("lock:%s", key)
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	k := lockKey(key)

	ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: acquire lock: %w", domain.ErrPersistence, err)
	}
	if !ok {
		return nil, domain.ErrCheckoutInProgress
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{k}, token).Err()
	}, nil
}
