package sequence

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNextStrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	alloc := NewMemory()
	day := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	prev := 0
	for i := 0; i < 50; i++ {
		seq, err := alloc.Next(ctx, "dept-1", day)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if seq <= prev {
			t.Fatalf("expected strictly increasing sequence, got %d after %d", seq, prev)
		}
		prev = seq
	}
}

func TestNextIndependentKeys(t *testing.T) {
	ctx := context.Background()
	alloc := NewMemory()
	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	if seq, _ := alloc.Next(ctx, "dept-1", monday); seq != 1 {
		t.Fatalf("expected 1, got %d", seq)
	}
	if seq, _ := alloc.Next(ctx, "dept-1", monday); seq != 2 {
		t.Fatalf("expected 2, got %d", seq)
	}
	if seq, _ := alloc.Next(ctx, "dept-2", monday); seq != 1 {
		t.Fatalf("other department must start at 1, got %d", seq)
	}
	if seq, _ := alloc.Next(ctx, "dept-1", tuesday); seq != 1 {
		t.Fatalf("next day must start at 1, got %d", seq)
	}
	// Same wall-clock date, different hour: still the same counter.
	if seq, _ := alloc.Next(ctx, "dept-1", monday.Add(8*time.Hour)); seq != 3 {
		t.Fatalf("expected 3 within same day, got %d", seq)
	}
}

func TestNextConcurrentDistinct(t *testing.T) {
	ctx := context.Background()
	alloc := NewMemory()
	day := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	const callers = 64
	results := make(chan int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := alloc.Next(ctx, "dept-1", day)
			if err != nil {
				t.Errorf("next: %v", err)
				return
			}
			results <- seq
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int]bool)
	for seq := range results {
		if seen[seq] {
			t.Fatalf("sequence %d issued twice", seq)
		}
		seen[seq] = true
	}
	if len(seen) != callers {
		t.Fatalf("expected %d distinct sequences, got %d", callers, len(seen))
	}
}
