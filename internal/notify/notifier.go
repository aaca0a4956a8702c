package notify

import (
	"log"
	"sync"
	"time"

	"github.com/BIecoSRL/aweyt/internal/models"

	"github.com/google/uuid"
)

type Kind string

const (
	KindTicketCreated     Kind = "ticket.created"
	KindTicketCalled      Kind = "ticket.called"
	KindTicketServing     Kind = "ticket.serving"
	KindTicketCompleted   Kind = "ticket.completed"
	KindTicketCancelled   Kind = "ticket.cancelled"
	KindTicketRedirected  Kind = "ticket.redirected"
	KindDepartmentUpdated Kind = "department.updated"
)

// Event describes one ticket or department change.
type Event struct {
	EventID      string         `json:"event_id"`
	Kind         Kind           `json:"kind"`
	Ticket       *models.Ticket `json:"ticket,omitempty"`
	CompanyID    string         `json:"company_id,omitempty"`
	DepartmentID string         `json:"department_id,omitempty"`
	WaitingCount int            `json:"waiting_count"`
	CreatedAt    time.Time      `json:"created_at"`
}

type subscriber struct {
	id string
	ch chan Event
}

// Notifier fans change events out to subscribers. Publish never blocks
// and never fails the originating mutation: a subscriber that cannot keep
// up has events dropped, with a log line.
type Notifier struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
}

func New() *Notifier {
	return &Notifier{subs: make(map[string]*subscriber)}
}

// Subscribe registers callback for all future events and returns a cancel
// function. The callback runs on a dedicated goroutine per subscriber, so
// a slow consumer delays only itself.
func (n *Notifier) Subscribe(callback func(Event)) (cancel func()) {
	sub := &subscriber{
		id: uuid.NewString(),
		ch: make(chan Event, 64),
	}

	n.mu.Lock()
	n.subs[sub.id] = sub
	n.mu.Unlock()

	go func() {
		for event := range sub.ch {
			deliver(callback, event)
		}
	}()

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if _, ok := n.subs[sub.id]; ok {
			delete(n.subs, sub.id)
			close(sub.ch)
		}
	}
}

func (n *Notifier) Publish(event Event) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, sub := range n.subs {
		select {
		case sub.ch <- event:
		default:
			log.Printf("notify: drop event %s kind=%s for subscriber %s", event.EventID, event.Kind, sub.id)
		}
	}
}

func deliver(callback func(Event), event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("notify: subscriber panic on event %s: %v", event.EventID, r)
		}
	}()
	callback(event)
}
