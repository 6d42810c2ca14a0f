package data

import (
	"context"
	"sync"
	"time"

	"credit-service/internal/conf"
	"credit-service/internal/constants"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
)

// Locker 组织级互斥锁。不同 key 互不阻塞；ctx 取消时放弃等待。
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NewLocker 按配置创建锁：redsync（多实例部署）或进程内锁（单实例 / 测试）
func NewLocker(c *conf.Bootstrap, rs *redsync.Redsync, logger log.Logger) Locker {
	helper := log.NewHelper(logger)
	expiry, tries := constants.DefaultLockExpiry, constants.DefaultLockTries
	if c.Data != nil && c.Data.Lock != nil {
		if d := c.Data.Lock.Expiry.AsDuration(); d > 0 {
			expiry = d
		}
		if c.Data.Lock.Tries > 0 {
			tries = c.Data.Lock.Tries
		}
	}

	var inner Locker
	switch lockProvider(c) {
	case constants.LockProviderRedsync:
		if rs == nil {
			helper.Warn("redis is not configured, falling back to local balance lock")
			inner = NewLocalLocker()
		} else {
			inner = &redsyncLocker{rs: rs, expiry: expiry, tries: tries, log: helper}
		}
	default:
		inner = NewLocalLocker()
	}
	return &meteredLocker{inner: inner, metrics: metrics.GetMetrics()}
}

// redsyncLocker 基于 Redis 的分布式锁
type redsyncLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	tries  int
	log    *log.Helper
}

func (l *redsyncLocker) Lock(ctx context.Context, key string) (func(), error) {
	mutex := l.rs.NewMutex(key, redsync.WithExpiry(l.expiry), redsync.WithTries(l.tries))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, err
	}
	return func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), constants.CacheWriteTimeout)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			l.log.Warnf("failed to unlock balance lock: key=%s, error=%v", key, err)
		}
	}, nil
}

// localLocker 进程内按 key 的互斥锁，空闲的 key 会被回收
type localLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker 创建进程内锁
func NewLocalLocker() Locker {
	return &localLocker{locks: make(map[string]*localLock)}
}

func (l *localLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &localLock{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *localLocker) release(key string, e *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// meteredLocker 记录锁获取指标
type meteredLocker struct {
	inner   Locker
	metrics *metrics.CreditMetrics
}

func (l *meteredLocker) Lock(ctx context.Context, key string) (func(), error) {
	startTime := time.Now()
	unlock, err := l.inner.Lock(ctx, key)
	l.metrics.LockAcquireDuration.Observe(time.Since(startTime).Seconds())
	if err != nil {
		l.metrics.LockAcquireTotal.WithLabelValues(constants.LockResultFailed).Inc()
		return nil, err
	}
	l.metrics.LockAcquireTotal.WithLabelValues(constants.LockResultSuccess).Inc()
	return unlock, nil
}
