package kvstore

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	store := NewMemory()

	store.Set("greeting", "hello", 0)
	if v, ok := store.Get("greeting"); !ok || v != "hello" {
		t.Errorf("Get = %q, %v", v, ok)
	}

	if _, ok := store.Get("missing"); ok {
		t.Error("missing key should not be found")
	}
}

func TestTTLExpiry(t *testing.T) {
	store := NewMemory()

	store.Set("ephemeral", "x", 10*time.Millisecond)
	if _, ok := store.Get("ephemeral"); !ok {
		t.Fatal("key should be live immediately after set")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := store.Get("ephemeral"); ok {
		t.Error("key should be expired")
	}
}

func TestIncr(t *testing.T) {
	store := NewMemory()

	if got := store.Incr("counter", 2, 0); got != 2 {
		t.Errorf("first incr = %d, want 2", got)
	}
	if got := store.Incr("counter", 3, 0); got != 5 {
		t.Errorf("second incr = %d, want 5", got)
	}
}

func TestIncrResetsAfterExpiry(t *testing.T) {
	store := NewMemory()

	store.Incr("daily", 4, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if got := store.Incr("daily", 1, 10*time.Millisecond); got != 1 {
		t.Errorf("expired counter should restart at 1, got %d", got)
	}
}

func TestDelete(t *testing.T) {
	store := NewMemory()

	store.Set("key", "value", 0)
	store.Delete("key")
	if _, ok := store.Get("key"); ok {
		t.Error("deleted key still present")
	}
}

func TestSweepDropsExpiredEntries(t *testing.T) {
	store := NewMemory()

	store.Set("old", "x", 5*time.Millisecond)
	store.Set("fresh", "y", time.Hour)
	time.Sleep(10 * time.Millisecond)

	store.Sweep()

	store.mu.RLock()
	_, oldPresent := store.items["old"]
	_, freshPresent := store.items["fresh"]
	store.mu.RUnlock()

	if oldPresent {
		t.Error("sweep left expired entry behind")
	}
	if !freshPresent {
		t.Error("sweep removed a live entry")
	}
}
