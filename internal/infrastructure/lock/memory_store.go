package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryStore 进程内锁存储
//
// 【仅限开发/测试】只在单实例内互斥，跨实例没有任何排他性保障。
// 生产环境必须使用 RedisStore。
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Acquire(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && time.Now().Before(entry.expiresAt) {
		return false, nil
	}

	s.entries[key] = memoryEntry{token: token, expiresAt: time.Now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Refresh(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.token != token || time.Now().After(entry.expiresAt) {
		return false, nil
	}

	entry.expiresAt = time.Now().Add(ttl)
	s.entries[key] = entry
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && entry.token == token {
		delete(s.entries, key)
	}
	return nil
}
