package cache

import (
	"context"
	"testing"
	"time"

	"github.com/pakbuy/backend/internal/domain"
)

func testResult(queryID string) *domain.ComparisonResult {
	return &domain.ComparisonResult{
		QueryID:      queryID,
		CleanedTitle: "samsung galaxy a14 128gb",
		Source:       "live",
	}
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	stored := testResult("query-1")
	if err := cache.Set(ctx, "compare:galaxy a14", stored, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := cache.Get(ctx, "compare:galaxy a14")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.QueryID != "query-1" {
		t.Errorf("Get() QueryID = %s, want query-1", got.QueryID)
	}
	if got.CachedAt.IsZero() {
		t.Error("Set() did not stamp CachedAt")
	}
}

func TestMemoryCache_Get_CacheMiss(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	_, err := cache.Get(ctx, "non-existent-key")
	if err != domain.ErrCacheMiss {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "short-lived", testResult("query-2"), time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	_, err := cache.Get(ctx, "short-lived")
	if err != domain.ErrCacheMiss {
		t.Errorf("Get() after expiry error = %v, want ErrCacheMiss", err)
	}

	exists, err := cache.Exists(ctx, "short-lived")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("Exists() = true for expired key, want false")
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	cache.Set(ctx, "key", testResult("query-3"), time.Minute)
	if err := cache.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := cache.Get(ctx, "key"); err != domain.ErrCacheMiss {
		t.Errorf("Get() after Delete error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCache_Exists(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	exists, err := cache.Exists(ctx, "missing")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("Exists() = true for missing key")
	}

	cache.Set(ctx, "present", testResult("query-4"), time.Minute)
	exists, err = cache.Exists(ctx, "present")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Error("Exists() = false for stored key")
	}
}

func TestMemoryCache_SizeAndClear(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	cache.Set(ctx, "a", testResult("query-a"), time.Minute)
	cache.Set(ctx, "b", testResult("query-b"), time.Minute)

	if size := cache.Size(); size != 2 {
		t.Errorf("Size() = %d, want 2", size)
	}

	cache.Clear()
	if size := cache.Size(); size != 0 {
		t.Errorf("Size() after Clear = %d, want 0", size)
	}
}
