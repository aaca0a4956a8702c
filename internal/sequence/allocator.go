package sequence

import (
	"context"
	"sync"
	"time"
)

// Allocator issues per-department, per-day ticket sequence numbers.
// Numbers for a key are strictly increasing and never reused within the
// same day, even when the ticket that claimed one is later cancelled.
type Allocator interface {
	Next(ctx context.Context, departmentID string, day time.Time) (int, error)
}

// DayKey reduces a timestamp to its local calendar date, the day boundary
// for sequence counters.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Memory is a mutex-guarded in-process Allocator keyed by
// (departmentID, date).
type Memory struct {
	mu   sync.Mutex
	last map[string]int
}

func NewMemory() *Memory {
	return &Memory{last: make(map[string]int)}
}

func (m *Memory) Next(ctx context.Context, departmentID string, day time.Time) (int, error) {
	key := departmentID + "|" + DayKey(day)

	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.last[key] + 1
	m.last[key] = next
	return next, nil
}
