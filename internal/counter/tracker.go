package counter

import (
	"sync"

	"github.com/BIecoSRL/aweyt/internal/models"
)

// Tracker caches each department's live waiting count: the number of
// tickets in waiting or called status for the current day. The cache is
// re-derivable from the ticket store at any time via Recount.
type Tracker struct {
	mu     sync.RWMutex
	counts map[string]int
}

func NewTracker() *Tracker {
	return &Tracker{counts: make(map[string]int)}
}

func (t *Tracker) Increment(departmentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[departmentID]++
}

// Decrement lowers the count, floored at zero so duplicate or miscounted
// decrements can never drive it negative.
func (t *Tracker) Decrement(departmentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts[departmentID] > 0 {
		t.counts[departmentID]--
	}
}

func (t *Tracker) WaitingCount(departmentID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[departmentID]
}

// Snapshot returns a copy of all department counts.
func (t *Tracker) Snapshot() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	counts := make(map[string]int, len(t.counts))
	for departmentID, count := range t.counts {
		counts[departmentID] = count
	}
	return counts
}

// Recount resynchronizes one department's count from ground truth.
// The caller supplies the relevant tickets; only waiting and called ones
// belonging to the department are counted.
func (t *Tracker) Recount(departmentID string, tickets []models.Ticket) int {
	count := 0
	for _, ticket := range tickets {
		if ticket.DepartmentID != departmentID {
			continue
		}
		if ticket.Status == models.StatusWaiting || ticket.Status == models.StatusCalled {
			count++
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[departmentID] = count
	return count
}

// Reset rebuilds the whole cache from the given tickets, used on startup
// recovery.
func (t *Tracker) Reset(tickets []models.Ticket) {
	counts := make(map[string]int)
	for _, ticket := range tickets {
		if ticket.Status == models.StatusWaiting || ticket.Status == models.StatusCalled {
			counts[ticket.DepartmentID]++
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts = counts
}
