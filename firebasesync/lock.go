package firebasesync

import (
	"context"
	"errors"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/roadworks_backend/config"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

const runLockKey = "sync:run"

// RunLock serializes sync runs. Acquire waits at most `wait` for the lease and
// returns ErrSyncInProgress when it stays taken.
type RunLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration, wait time.Duration) (Lease, error)
}

// Lease is kept alive until Release so a run longer than the TTL keeps its lock.
type Lease interface {
	Release(ctx context.Context) error
}

const lockRetryInterval = 250 * time.Millisecond

type redisRunLock struct {
	client *redislock.Client
	logger *logrus.Logger
}

// NewRedisRunLock shares the lease between every instance of the service.
func NewRedisRunLock(client *redislock.Client, logger *logrus.Logger) RunLock {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &redisRunLock{client: client, logger: logger}
}

func (l *redisRunLock) Acquire(ctx context.Context, key string, ttl time.Duration, wait time.Duration) (Lease, error) {
	opts := &redislock.Options{}
	if wait > 0 {
		retries := int(wait / lockRetryInterval)
		opts.RetryStrategy = redislock.LimitRetry(redislock.LinearBackoff(lockRetryInterval), retries)
	}
	lock, err := l.client.Obtain(ctx, key, ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrSyncInProgress
	}
	if err != nil {
		return nil, err
	}
	lease := &redisLease{lock: lock, done: make(chan struct{})}
	go keepAlive(lease.done, ttl, func() {
		refreshLease(l.logger, key, ttl, lock.Refresh)
	})
	return lease, nil
}

type redisLease struct {
	lock *redislock.Lock
	done chan struct{}
	once sync.Once
}

func (l *redisLease) Release(ctx context.Context) error {
	l.once.Do(func() { close(l.done) })
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}

// LocalRunLock is an in-process lease with expiry, used when Redis is not configured.
type LocalRunLock struct {
	mu    sync.Mutex
	held  map[string]localHold
	token uint64
	now   func() time.Time
}

type localHold struct {
	token   uint64
	expires time.Time
}

func NewLocalRunLock() *LocalRunLock {
	return &LocalRunLock{held: map[string]localHold{}, now: time.Now}
}

func (l *LocalRunLock) Acquire(ctx context.Context, key string, ttl time.Duration, wait time.Duration) (Lease, error) {
	deadline := l.now().Add(wait)
	for {
		if lease, ok := l.tryAcquire(key, ttl); ok {
			return lease, nil
		}
		if wait <= 0 || !l.now().Before(deadline) {
			return nil, ErrSyncInProgress
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func (l *LocalRunLock) tryAcquire(key string, ttl time.Duration) (Lease, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return nil, false
	}
	l.token++
	l.held[key] = localHold{token: l.token, expires: now.Add(ttl)}

	lease := &localLease{owner: l, key: key, token: l.token, done: make(chan struct{})}
	go keepAlive(lease.done, ttl, func() { l.extend(key, lease.token, ttl) })
	return lease, true
}

func (l *LocalRunLock) extend(key string, token uint64, ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.held[key]; ok && h.token == token {
		h.expires = l.now().Add(ttl)
		l.held[key] = h
	}
}

func (l *LocalRunLock) release(key string, token uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.held[key]; ok && h.token == token {
		delete(l.held, key)
	}
}

type localLease struct {
	owner *LocalRunLock
	key   string
	token uint64
	done  chan struct{}
	once  sync.Once
}

func (l *localLease) Release(context.Context) error {
	l.once.Do(func() {
		close(l.done)
		l.owner.release(l.key, l.token)
	})
	return nil
}

// refreshLease extends the lease; a failure means another run may now take the lock.
func refreshLease(logger *logrus.Logger, key string, ttl time.Duration, refresh func(ctx context.Context, ttl time.Duration, opt *redislock.Options) error) {
	if err := refresh(context.Background(), ttl, nil); err != nil {
		config.LogError(logger, "firebasesync", "refreshLease", "refresh run lock", key, err)
	}
}

func keepAlive(done <-chan struct{}, ttl time.Duration, refresh func()) {
	interval := ttl / 2
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			refresh()
		}
	}
}
