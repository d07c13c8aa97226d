package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func newTestStorage(t *testing.T) (*Storage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	storage, err := New(Config{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("failed to create redis storage: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close() })
	return storage, mr
}

func TestNew_RequiresAddress(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestNew_FailsWhenServerUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := New(Config{Addr: addr, PingTimeout: 200 * time.Millisecond}); err == nil {
		t.Fatal("expected ping error for closed server")
	}
}

func TestStorage_IncrementReturnsPostIncrementValue(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := storage.Increment(ctx, "throttle:ip:10.0.0.1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("expected count %d, got %d", want, got)
		}
	}
}

func TestStorage_ExpireResetsCounterAfterTTL(t *testing.T) {
	storage, mr := newTestStorage(t)
	ctx := context.Background()
	key := "throttle:ip:10.0.0.1"

	if _, err := storage.Increment(ctx, key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := storage.Expire(ctx, key, time.Minute); err != nil {
		t.Fatalf("unexpected error arming expiry: %v", err)
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Fatalf("expected ttl of 1m, got %v", ttl)
	}
	if _, err := storage.Increment(ctx, key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// INCR on an existing key must not touch the TTL.
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Fatalf("expected ttl to stay at 1m, got %v", ttl)
	}

	mr.FastForward(time.Minute)

	got, err := storage.Increment(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error after expiry: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected counter to restart at 1, got %d", got)
	}
}

func TestStorage_ConcurrentIncrementsAreNotLost(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	const n = 50
	seen := make([]bool, n+1)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			count, err := storage.Increment(ctx, "shared")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if count < 1 || count > n || seen[count] {
				t.Errorf("unexpected or duplicated count %d", count)
				return
			}
			seen[count] = true
		}()
	}
	wg.Wait()

	for i := 1; i <= n; i++ {
		if !seen[i] {
			t.Fatalf("count %d was never observed", i)
		}
	}
}

func TestStorage_ReturnsErrorWhenServerGoesAway(t *testing.T) {
	mr := miniredis.RunT(t)
	storage := NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	t.Cleanup(func() { _ = storage.Close() })

	mr.Close()

	if _, err := storage.Increment(context.Background(), "k"); err == nil {
		t.Fatal("expected increment error")
	}
	if err := storage.Expire(context.Background(), "k", time.Second); err == nil {
		t.Fatal("expected expire error")
	}
}

func TestStorage_RemainingFollowsTTL(t *testing.T) {
	storage, mr := newTestStorage(t)
	ctx := context.Background()
	key := "throttle:ip:10.0.0.1"

	if got, err := storage.Remaining(ctx, key); err != nil || got > 0 {
		t.Fatalf("expected non-positive remaining for missing key, got %v err=%v", got, err)
	}

	if _, err := storage.Increment(ctx, key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := storage.Expire(ctx, key, time.Minute); err != nil {
		t.Fatalf("unexpected error arming expiry: %v", err)
	}

	mr.FastForward(15 * time.Second)

	got, err := storage.Remaining(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 45*time.Second {
		t.Fatalf("expected 45s remaining, got %v", got)
	}
}
