package lock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreAcquireMutualExclusion(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ok, err := store.Acquire(ctx, "k", "token-a", time.Second)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	ok, err = store.Acquire(ctx, "k", "token-b", time.Second)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatal("held lock must not be acquired by another token")
	}
}

func TestMemoryStoreAcquireAfterExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if ok, _ := store.Acquire(ctx, "k", "token-a", 10*time.Millisecond); !ok {
		t.Fatal("first acquire failed")
	}
	time.Sleep(20 * time.Millisecond)

	ok, err := store.Acquire(ctx, "k", "token-b", time.Second)
	if err != nil || !ok {
		t.Fatalf("acquire after expiry: ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreRefreshOnlyByHolder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if ok, _ := store.Acquire(ctx, "k", "token-a", time.Second); !ok {
		t.Fatal("acquire failed")
	}

	held, err := store.Refresh(ctx, "k", "token-b", time.Second)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if held {
		t.Fatal("foreign token must not refresh the lock")
	}

	held, err = store.Refresh(ctx, "k", "token-a", time.Second)
	if err != nil || !held {
		t.Fatalf("holder refresh: held=%v err=%v", held, err)
	}
}

func TestMemoryStoreReleaseOnlyByHolder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if ok, _ := store.Acquire(ctx, "k", "token-a", time.Second); !ok {
		t.Fatal("acquire failed")
	}

	// 别人的释放不生效
	if err := store.Release(ctx, "k", "token-b"); err != nil {
		t.Fatalf("foreign release: %v", err)
	}
	if ok, _ := store.Acquire(ctx, "k", "token-c", time.Second); ok {
		t.Fatal("lock must survive a foreign release")
	}

	if err := store.Release(ctx, "k", "token-a"); err != nil {
		t.Fatalf("holder release: %v", err)
	}
	if ok, _ := store.Acquire(ctx, "k", "token-c", time.Second); !ok {
		t.Fatal("lock must be free after holder release")
	}
}

func TestMutexLockRetriesThenFails(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	holder := NewMutex(store, "k", "holder", time.Second)
	if ok, _ := holder.TryLock(ctx); !ok {
		t.Fatal("holder trylock failed")
	}

	waiter := NewMutex(store, "k", "waiter", time.Second)
	err := waiter.Lock(ctx, time.Millisecond, 3)
	if !errors.Is(err, ErrLockFailed) {
		t.Fatalf("err = %v, want ErrLockFailed", err)
	}
}

func TestMutexLockSucceedsAfterRelease(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	holder := NewMutex(store, "k", "holder", time.Second)
	if ok, _ := holder.TryLock(ctx); !ok {
		t.Fatal("holder trylock failed")
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		holder.Unlock(context.Background())
	}()

	waiter := NewMutex(store, "k", "waiter", time.Second)
	if err := waiter.Lock(ctx, 5*time.Millisecond, 50); err != nil {
		t.Fatalf("waiter lock: %v", err)
	}
}

func TestMutexLockHonorsContextCancel(t *testing.T) {
	store := NewMemoryStore()

	holder := NewMutex(store, "k", "holder", time.Minute)
	if ok, _ := holder.TryLock(context.Background()); !ok {
		t.Fatal("holder trylock failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	waiter := NewMutex(store, "k", "waiter", time.Second)
	err := waiter.Lock(ctx, 5*time.Millisecond, 1000)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}
