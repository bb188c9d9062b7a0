package cron

import (
	"context"
	"testing"
	"time"
)

type memoryRedis struct {
	values  map[string]string
	extends int
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *memoryRedis) CompareAndExpire(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	if current, ok := m.values[key]; !ok || current != value {
		return false, nil
	}
	m.extends++
	return true, nil
}

func TestRedisLockExclusiveUntilReleased(t *testing.T) {
	store := &memoryRedis{values: map[string]string{}}
	first, err := NewRedisLock(store, "cs:lock:cron", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "cs:lock:cron", time.Minute)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected first acquire, ok=%v err=%v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("expected second acquire to fail")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if _, held := store.values["cs:lock:cron"]; !held {
		t.Fatal("non-owner release must not drop the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expected acquire after release")
	}
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	store := &memoryRedis{values: map[string]string{}}
	lock, _ := NewRedisLock(store, "cs:lock:cron", 0)
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	delete(store.values, "cs:lock:cron")
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("expected nil on expired lock, got %v", err)
	}
}

func TestNewRedisLockValidation(t *testing.T) {
	if _, err := NewRedisLock(nil, "key", time.Minute); err == nil {
		t.Fatal("expected error without client")
	}
	if _, err := NewRedisLock(&memoryRedis{}, "", time.Minute); err == nil {
		t.Fatal("expected error without key")
	}
}

func TestRedisLockExtendDetectsLostLease(t *testing.T) {
	store := &memoryRedis{values: map[string]string{}}
	lock, _ := NewRedisLock(store, "cs:lock:cron", time.Minute)
	ctx := context.Background()

	if ok, _ := lock.Extend(ctx); ok {
		t.Fatal("extend without acquire must fail")
	}
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	if ok, err := lock.Extend(ctx); err != nil || !ok {
		t.Fatalf("expected extend, ok=%v err=%v", ok, err)
	}

	store.values["cs:lock:cron"] = "someone-else"
	if ok, _ := lock.Extend(ctx); ok {
		t.Fatal("extend after takeover must fail")
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release after loss: %v", err)
	}
	if store.values["cs:lock:cron"] != "someone-else" {
		t.Fatal("release must not drop a lease owned elsewhere")
	}
}
