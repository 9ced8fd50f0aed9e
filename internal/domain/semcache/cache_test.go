package semcache

import (
	"context"
	"testing"
	"time"
)

func TestGetMissOnEmptyCache(t *testing.T) {
	c := New(0, 0, 0, nil)
	_, ok := c.Get(context.Background(), []float32{1, 0}, "q")
	if ok {
		t.Fatalf("expected miss on empty cache")
	}
}

func TestSetThenGetHitsAboveThreshold(t *testing.T) {
	c := New(0.9, 0, 0, nil)
	ctx := context.Background()
	c.Set(ctx, []float32{1, 0}, "what is go", "a systems language", nil)

	result, ok := c.Get(ctx, []float32{1, 0}, "what is go")
	if !ok {
		t.Fatalf("expected hit")
	}
	if result.Answer != "a systems language" {
		t.Fatalf("got answer %q", result.Answer)
	}
}

func TestGetMissesBelowThreshold(t *testing.T) {
	c := New(0.99, 0, 0, nil)
	ctx := context.Background()
	c.Set(ctx, []float32{1, 0}, "q1", "answer", nil)

	_, ok := c.Get(ctx, []float32{0, 1}, "unrelated")
	if ok {
		t.Fatalf("expected miss for orthogonal query")
	}
}

func TestSetRejectsEmptyAnswer(t *testing.T) {
	c := New(0.5, 0, 0, nil)
	ctx := context.Background()
	c.Set(ctx, []float32{1, 0}, "q", "", nil)

	stats := c.Stats()
	if stats.Size != 0 {
		t.Fatalf("expected empty answer to be rejected, size=%d", stats.Size)
	}
}

func TestExpiredEntryIsNotReturned(t *testing.T) {
	c := New(0.5, 0, time.Millisecond, nil)
	ctx := context.Background()
	c.Set(ctx, []float32{1, 0}, "q", "a", nil)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(ctx, []float32{1, 0}, "q")
	if ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestCapacityEvictsOldestTenPercent(t *testing.T) {
	c := New(0.5, 10, time.Hour, nil)
	ctx := context.Background()
	for i := 0; i < 11; i++ {
		c.Set(ctx, []float32{float32(i), 1}, "q", "a", nil)
	}
	stats := c.Stats()
	if stats.Size > 10 {
		t.Fatalf("expected eviction to keep size <= capacity, got %d", stats.Size)
	}
}

func TestStatsTracksHitsAndMisses(t *testing.T) {
	c := New(0.9, 0, 0, nil)
	ctx := context.Background()
	c.Set(ctx, []float32{1, 0}, "q", "a", nil)
	c.Get(ctx, []float32{1, 0}, "q")
	c.Get(ctx, []float32{0, 1}, "other")

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("got %#v", stats)
	}
	if stats.EstimatedSavedUSD != costPerHitUSD {
		t.Fatalf("expected one hit worth of savings, got %f", stats.EstimatedSavedUSD)
	}
}
