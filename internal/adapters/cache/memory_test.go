package cache

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// manualClock is a settable time source for expiry tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testEntry(body string) Entry {
	return Entry{
		Header:   map[string]string{"Content-Type": "application/json"},
		Body:     []byte(body),
		StoredAt: time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStore_PutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx)
	defer store.Close()

	if n := store.Len(ctx); n != 0 {
		t.Errorf("expected empty store, got %d entries", n)
	}

	want := testEntry(`{"dataset_id":"abc"}`)
	if err := store.Put(ctx, "key1", want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, found, err := store.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected entry to be found")
	}
	if !bytes.Equal(got.Body, want.Body) {
		t.Errorf("expected body %q, got %q", want.Body, got.Body)
	}
	if got.Header["Content-Type"] != "application/json" {
		t.Errorf("expected header to round-trip, got %v", got.Header)
	}
	if !got.StoredAt.Equal(want.StoredAt) {
		t.Errorf("expected stored_at %v, got %v", want.StoredAt, got.StoredAt)
	}
	if n := store.Len(ctx); n != 1 {
		t.Errorf("expected 1 entry, got %d", n)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx)
	defer store.Close()

	_, found, err := store.Get(ctx, "absent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected miss for absent key")
	}
}

func TestMemoryStore_Replace(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx)
	defer store.Close()

	if err := store.Put(ctx, "key1", testEntry("old")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Put(ctx, "key1", testEntry("new")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, found, err := store.Get(ctx, "key1")
	if err != nil || !found {
		t.Fatalf("expected hit, got found=%v err=%v", found, err)
	}
	if string(got.Body) != "new" {
		t.Errorf("expected latest body, got %q", got.Body)
	}
	if n := store.Len(ctx); n != 1 {
		t.Errorf("expected 1 entry after replace, got %d", n)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	store := NewMemoryStore(ctx, WithTTL(time.Minute), WithClock(clock.Now))
	defer store.Close()

	if err := store.Put(ctx, "key1", testEntry("body")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.Advance(59 * time.Second)
	if _, found, _ := store.Get(ctx, "key1"); !found {
		t.Error("expected entry to be live before the deadline")
	}

	clock.Advance(2 * time.Second)
	if _, found, _ := store.Get(ctx, "key1"); found {
		t.Error("expected entry to expire after the deadline")
	}
	if n := store.Len(ctx); n != 0 {
		t.Errorf("expected 0 live entries, got %d", n)
	}
}

func TestMemoryStore_PutRestartsTTL(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	store := NewMemoryStore(ctx, WithTTL(time.Minute), WithClock(clock.Now))
	defer store.Close()

	if err := store.Put(ctx, "key1", testEntry("first")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(45 * time.Second)
	if err := store.Put(ctx, "key1", testEntry("second")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.Advance(45 * time.Second)
	got, found, _ := store.Get(ctx, "key1")
	if !found {
		t.Fatal("expected rewrite to restart the TTL")
	}
	if string(got.Body) != "second" {
		t.Errorf("expected latest body, got %q", got.Body)
	}
}

func TestMemoryStore_JanitorSweeps(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx, WithTTL(20*time.Millisecond), WithJanitorInterval(10*time.Millisecond))
	defer store.Close()

	for i := 0; i < 10; i++ {
		if err := store.Put(ctx, fmt.Sprintf("key%d", i), testEntry("body")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		store.mu.RLock()
		remaining := len(store.entries)
		store.mu.RUnlock()
		if remaining == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("expected janitor to delete expired entries")
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx)
	defer store.Close()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("key-%d-%d", g, i)
				if err := store.Put(ctx, key, testEntry("body")); err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				if _, found, err := store.Get(ctx, key); err != nil || !found {
					t.Errorf("expected hit for %s, got found=%v err=%v", key, found, err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	if n := store.Len(ctx); n != 1000 {
		t.Errorf("expected 1000 entries, got %d", n)
	}
}

func TestMemoryStore_CloseIdempotent(t *testing.T) {
	store := NewMemoryStore(context.Background())
	if err := store.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
}
