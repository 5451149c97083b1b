package job

import (
	"context"
	"errors"
	"time"

	"paycore/internal/infrastructure/lock"
	"paycore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Func 任务的一次执行，必须尊重 ctx 取消尽快返回
type Func func(ctx context.Context) error

// ============================================================================
// 带分布式锁的周期任务执行器
// ============================================================================
//
// 多实例部署时同名任务全局只有一个实例在跑：
//   1. 每轮用全新 token 抢锁，抢不到就等下个周期
//   2. 持锁期间后台每 ttl/3 续期一次
//   3. 续期失败说明锁已不可靠，立即取消任务并限时等它退出
//   4. 无论任务成败，锁一定释放
// ============================================================================

type Runner struct {
	name     string
	store    lock.Store
	lockKey  string
	ttl      time.Duration
	interval time.Duration
	grace    time.Duration
	fn       Func
}

func NewRunner(name string, store lock.Store, lockKey string, ttl, interval time.Duration, fn Func) *Runner {
	return &Runner{
		name:     name,
		store:    store,
		lockKey:  lockKey,
		ttl:      ttl,
		interval: interval,
		grace:    5 * time.Second,
		fn:       fn,
	}
}

// Run 阻塞运行直到 ctx 取消，通常放在独立 goroutine 里
func (r *Runner) Run(ctx context.Context) {
	logger.L.Info("周期任务启动",
		zap.String("job", r.name),
		zap.Duration("interval", r.interval))

	for {
		r.runOnce(ctx)

		select {
		case <-ctx.Done():
			logger.L.Info("周期任务退出", zap.String("job", r.name))
			return
		case <-time.After(r.interval):
		}
	}
}

// runOnce 抢锁执行一轮
func (r *Runner) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	// 每轮全新 token，绝不复用上一轮的
	mutex := lock.NewMutex(r.store, r.lockKey, uuid.NewString(), r.ttl)
	acquired, err := mutex.TryLock(ctx)
	if err != nil {
		logger.L.Warn("任务抢锁出错",
			zap.String("job", r.name),
			zap.Error(err))
		return
	}
	if !acquired {
		// 其他实例在跑，等下个周期
		return
	}
	defer func() {
		if err := mutex.Unlock(context.Background()); err != nil {
			logger.L.Error("任务释放锁失败",
				zap.String("job", r.name),
				zap.Error(err))
		}
	}()

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- r.fn(jobCtx)
	}()

	refreshEvery := r.ttl / 3
	ticker := time.NewTicker(refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.L.Error("任务执行失败",
					zap.String("job", r.name),
					zap.Error(err))
			}
			return

		case <-ticker.C:
			held, err := mutex.Refresh(ctx)
			if err != nil || !held {
				// 续期出错按丢锁处理，不能再假设自己是唯一执行者
				logger.L.Warn("锁续期失败，取消本轮任务",
					zap.String("job", r.name),
					zap.Error(err))
				cancel()
				r.waitWithGrace(done)
				return
			}

		case <-ctx.Done():
			cancel()
			r.waitWithGrace(done)
			return
		}
	}
}

// waitWithGrace 限时等任务退出，超时只能记录后放弃等待
func (r *Runner) waitWithGrace(done <-chan error) {
	select {
	case <-done:
	case <-time.After(r.grace):
		logger.L.Error("任务未在宽限期内退出",
			zap.String("job", r.name),
			zap.Duration("grace", r.grace))
	}
}
