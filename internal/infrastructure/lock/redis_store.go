package lock

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// refreshScript 检查 token 匹配后续期，保证"检查+续期"原子执行
const refreshScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`

// releaseScript 检查 token 匹配后删除
//
// 为什么要检查 token？
//
//	场景：A 获取锁 -> A 处理超时，锁自动过期 -> B 获取锁 -> A 执行完毕调用 Release
//	如果不检查 token，A 会把 B 的锁删掉！
const releaseScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// RedisStore 基于 Redis 的锁存储，多实例共享
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Acquire SET key token NX PX ttl
func (s *RedisStore) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	success, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		// 存储不可达按未获取处理
		return false, err
	}
	return success, nil
}

func (s *RedisStore) Refresh(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	result, err := s.client.Eval(ctx, refreshScript, []string{key}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

func (s *RedisStore) Release(ctx context.Context, key, token string) error {
	_, err := s.client.Eval(ctx, releaseScript, []string{key}, token).Result()
	return err
}
