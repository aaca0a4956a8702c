package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/BIecoSRL/aweyt/internal/models"
	"github.com/BIecoSRL/aweyt/internal/store"
)

// Store is an in-memory TicketStore. Ticket ids are assigned monotonically
// and never reused, including after a purge.
type Store struct {
	mu      sync.RWMutex
	tickets map[int64]models.Ticket
	lastID  int64
}

func NewStore() *Store {
	return &Store{tickets: make(map[int64]models.Ticket)}
}

func (s *Store) Create(ctx context.Context, ticket models.Ticket) (models.Ticket, error) {
	if ticket.ServiceID == "" || ticket.DepartmentID == "" {
		return models.Ticket{}, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	ticket.ID = s.lastID
	ticket.Status = models.StatusWaiting
	s.tickets[ticket.ID] = ticket
	return ticket, nil
}

func (s *Store) Get(ctx context.Context, id int64) (models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return ticket, nil
}

func (s *Store) Transition(ctx context.Context, id int64, from []models.Status, to models.Status, fields store.TransitionFields) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}

	allowed := false
	for _, status := range from {
		if ticket.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return models.Ticket{}, store.ErrInvalidTransition
	}

	ticket.Status = to
	if fields.CalledAt != nil {
		at := *fields.CalledAt
		ticket.CalledAt = &at
	}
	if fields.ServedAt != nil {
		at := *fields.ServedAt
		ticket.ServedAt = &at
	}
	if fields.CompletedAt != nil {
		at := *fields.CompletedAt
		ticket.CompletedAt = &at
	}
	if fields.ServedBy != nil {
		actor := *fields.ServedBy
		ticket.ServedBy = &actor
	}

	s.tickets[id] = ticket
	return ticket, nil
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tickets []models.Ticket
	for _, ticket := range s.tickets {
		if q.Matches(ticket) {
			tickets = append(tickets, ticket)
		}
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
	return tickets, nil
}

func (s *Store) Purge(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return store.ErrTicketNotFound
	}
	if !ticket.Status.Terminal() {
		return store.ErrNotTerminal
	}
	delete(s.tickets, id)
	return nil
}
