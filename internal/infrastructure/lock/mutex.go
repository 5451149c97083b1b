package lock

import (
	"context"
	"time"
)

// Mutex 一把具体的锁：key + 持有者 token + 过期时间
type Mutex struct {
	store Store
	key   string
	token string
	ttl   time.Duration
}

// NewMutex 创建锁实例，token 标识持有者（通常用 uuid 或 requestID，便于追踪）
func NewMutex(store Store, key, token string, ttl time.Duration) *Mutex {
	return &Mutex{
		store: store,
		key:   key,
		token: token,
		ttl:   ttl,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	return m.store.Acquire(ctx, m.key, m.token, m.ttl)
}

// Lock 阻塞式获取锁（带重试），超过 maxRetries 返回 ErrLockFailed
func (m *Mutex) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := m.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Refresh 续期，返回是否仍持有锁
func (m *Mutex) Refresh(ctx context.Context) (bool, error) {
	return m.store.Refresh(ctx, m.key, m.token, m.ttl)
}

// Unlock 释放锁，只会删除自己持有的锁
func (m *Mutex) Unlock(ctx context.Context) error {
	return m.store.Release(ctx, m.key, m.token)
}
