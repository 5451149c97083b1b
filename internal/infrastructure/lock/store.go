package lock

import (
	"context"
	"errors"
	"time"
)

// ============================================================================
// 分布式锁存储抽象
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 同一笔渠道回调可能被多实例同时收到（渠道重发 + 负载均衡），
// 没有跨实例互斥时两边都会尝试把订单置为已支付并入账。
//
// 加锁语义：
//   Acquire: key 不存在时写入 token 并设置过期 —— 谁写入成功谁持有
//   Refresh: token 仍是自己的才续期 —— 防止给别人的锁续命
//   Release: token 仍是自己的才删除 —— 防止误删过期后被别人抢走的锁
//
// 存储不可达时一律按"未获取到锁"处理（fail closed），
// 宁可让渠道稍后重发，也不能在没有互斥保障的情况下动账。
//
// ============================================================================

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

// Store 锁存储接口，构造时注入，禁止包级单例
type Store interface {
	// Acquire 仅当 key 不存在时写入 token，返回是否获取成功
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// Refresh 仅当存储的 token 与自己一致时续期，返回是否仍持有
	Refresh(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// Release 仅当存储的 token 与自己一致时删除
	Release(ctx context.Context, key, token string) error
}
