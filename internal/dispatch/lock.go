package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const lockExtendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

// Lease is a held lock. It is lost once its ttl passes without Extend.
type Lease struct {
	release func(ctx context.Context) error
	extend  func(ctx context.Context, ttl time.Duration) (bool, error)
}

// Release gives up the lock if this lease still owns it
func (l *Lease) Release(ctx context.Context) error {
	return l.release(ctx)
}

// Extend resets the lock's expiry to ttl from now. It reports false when
// the lease expired and the key is free or owned by someone else.
func (l *Lease) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("lock ttl must be positive")
	}
	return l.extend(ctx, ttl)
}

// Locker grants exclusive, expiring ownership of a key
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (*Lease, bool, error)
	Held(ctx context.Context, key string) (bool, error)
}

// RedisLocker implements Locker with SET NX and compare-and-set release and extend
type RedisLocker struct {
	client  *redis.Client
	release *redis.Script
	extend  *redis.Script
}

// NewRedisLocker creates a Redis backed locker
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client:  client,
		release: redis.NewScript(lockReleaseScript),
		extend:  redis.NewScript(lockExtendScript),
	}
}

// TryLock acquires key for ttl without blocking
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lease, bool, error) {
	if err := checkLockArgs(key, ttl); err != nil {
		return nil, false, err
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return &Lease{
		release: func(ctx context.Context) error {
			return l.release.Run(ctx, l.client, []string{key}, token).Err()
		},
		extend: func(ctx context.Context, ttl time.Duration) (bool, error) {
			n, err := l.extend.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Int64()
			if err != nil {
				return false, err
			}
			return n == 1, nil
		},
	}, true, nil
}

// Held reports whether anyone currently owns key
func (l *RedisLocker) Held(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LocalLocker implements Locker inside one process
type LocalLocker struct {
	mu    sync.Mutex
	now   func() time.Time
	locks map[string]localLock
}

type localLock struct {
	token   string
	expires time.Time
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{now: time.Now, locks: make(map[string]localLock)}
}

// TryLock acquires key for ttl without blocking
func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (*Lease, bool, error) {
	if err := checkLockArgs(key, ttl); err != nil {
		return nil, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.locks[key]; ok && now.Before(held.expires) {
		return nil, false, nil
	}
	token := uuid.NewString()
	l.locks[key] = localLock{token: token, expires: now.Add(ttl)}

	return &Lease{
		release: func(context.Context) error {
			l.mu.Lock()
			defer l.mu.Unlock()
			if held, ok := l.locks[key]; ok && held.token == token {
				delete(l.locks, key)
			}
			return nil
		},
		extend: func(_ context.Context, ttl time.Duration) (bool, error) {
			l.mu.Lock()
			defer l.mu.Unlock()
			now := l.now()
			held, ok := l.locks[key]
			if !ok || held.token != token || !now.Before(held.expires) {
				return false, nil
			}
			l.locks[key] = localLock{token: token, expires: now.Add(ttl)}
			return true, nil
		},
	}, true, nil
}

// Held reports whether anyone currently owns key
func (l *LocalLocker) Held(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, ok := l.locks[key]
	return ok && l.now().Before(held.expires), nil
}

func checkLockArgs(key string, ttl time.Duration) error {
	if key == "" {
		return errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return errors.New("lock ttl must be positive")
	}
	return nil
}
