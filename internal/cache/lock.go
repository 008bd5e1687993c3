// Package cache holds the per-session lock and the generated question set
// cache. Each comes in a Redis flavour for multi-replica deployments and an
// in-process flavour for a single server or tests.
package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taru-edu/taru/internal/assessment"
)

// Locker serializes work on one user's session of one assessment type.
type Locker interface {
	// Lock blocks until the lock for key is held or ctx is done. The
	// returned func releases it and is safe to call more than once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// SessionKey builds the key shared by locks and cache entries.
func SessionKey(userID string, typ assessment.Type) string {
	return userID + ":" + string(typ)
}

// LocalLocker is an in-process keyed mutex.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s, false)
		return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(key, s, true) }) }, nil
}

func (l *LocalLocker) release(key string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// releaseScript deletes the lock only if this holder still owns it.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// RedisLocker is a lease-based lock using SET NX PX. The lease bounds how
// long a crashed holder can block others.
type RedisLocker struct {
	client redis.Cmdable
	prefix string
	lease  time.Duration
	poll   time.Duration
	logger *slog.Logger

	// newToken is replaceable in tests.
	newToken func() string
}

// NewRedisLocker builds a locker on client. Failed releases are logged to
// logger; nil discards them.
func NewRedisLocker(client redis.Cmdable, lease time.Duration, logger *slog.Logger) *RedisLocker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RedisLocker{
		client:   client,
		prefix:   "taru:lock:",
		lease:    lease,
		poll:     50 * time.Millisecond,
		logger:   logger,
		newToken: uuid.NewString,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	rkey := l.prefix + key
	token := l.newToken()

	for {
		ok, err := l.client.SetNX(ctx, rkey, token, l.lease).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
		case <-time.After(l.poll):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release even if the request context was cancelled.
			n, err := l.client.Eval(context.Background(), releaseScript, []string{rkey}, token).Int64()
			switch {
			case err != nil:
				l.logger.Warn("release lock failed, waiters block until the lease ends",
					"key", rkey, "lease", l.lease, "error", err)
			case n == 0:
				l.logger.Warn("lock lease expired before release", "key", rkey, "lease", l.lease)
			}
		})
	}, nil
}
