package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BIecoSRL/aweyt/internal/catalog"
	"github.com/BIecoSRL/aweyt/internal/counter"
	"github.com/BIecoSRL/aweyt/internal/models"
	"github.com/BIecoSRL/aweyt/internal/notify"
	"github.com/BIecoSRL/aweyt/internal/sequence"
	"github.com/BIecoSRL/aweyt/internal/store"
)

const numberPad = 3

// Engine orchestrates the ticket lifecycle: it validates preconditions,
// drives the transition table, keeps department waiting counts in step
// with every transition, and publishes a change event after each
// successful mutation.
//
// A single RWMutex serializes mutations so a ticket transition and its
// counter delta become visible as one unit. The critical section covers
// only the check-state-then-set work; event publication happens after the
// lock is released and can never fail the mutation.
type Engine struct {
	mu        sync.RWMutex
	tickets   store.TicketStore
	seq       sequence.Allocator
	counters  *counter.Tracker
	directory catalog.Directory
	notifier  *notify.Notifier
	now       func() time.Time
}

type Options struct {
	// Now overrides the wall clock, for tests.
	Now func() time.Time
}

func New(tickets store.TicketStore, seq sequence.Allocator, counters *counter.Tracker, directory catalog.Directory, notifier *notify.Notifier, options Options) *Engine {
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		tickets:   tickets,
		seq:       seq,
		counters:  counters,
		directory: directory,
		notifier:  notifier,
		now:       now,
	}
}

// FormatNumber builds a ticket display code from the department name and
// sequence: first letter of the name uppercased, then the zero-padded
// sequence. An empty name falls back to the T prefix.
func FormatNumber(departmentName string, seq int) string {
	prefix := "T"
	if departmentName != "" {
		runes := []rune(departmentName)
		prefix = strings.ToUpper(string(runes[0]))
	}
	return fmt.Sprintf("%s%0*d", prefix, numberPad, seq)
}

// Generate creates a waiting ticket for the given service, allocating the
// next sequence number for the service's department today.
func (e *Engine) Generate(ctx context.Context, serviceID, customerID string) (models.Ticket, error) {
	if strings.TrimSpace(serviceID) == "" {
		return models.Ticket{}, fmt.Errorf("%w: service id is required", store.ErrValidation)
	}

	svc, dept, err := e.resolveTarget(ctx, serviceID)
	if err != nil {
		return models.Ticket{}, err
	}

	e.mu.Lock()
	now := e.now()
	seq, err := e.seq.Next(ctx, svc.DepartmentID, now)
	if err != nil {
		e.mu.Unlock()
		return models.Ticket{}, err
	}
	ticket, events, err := e.createLocked(ctx, svc, dept, customerID, seq, nil, now)
	e.mu.Unlock()
	if err != nil {
		return models.Ticket{}, err
	}

	e.publish(events)
	return ticket, nil
}

// Call moves a waiting ticket to called and records the calling actor.
func (e *Engine) Call(ctx context.Context, ticketID int64, actor string) (models.Ticket, error) {
	if strings.TrimSpace(actor) == "" {
		return models.Ticket{}, fmt.Errorf("%w: actor is required", store.ErrValidation)
	}

	e.mu.Lock()
	now := e.now()
	ticket, err := e.tickets.Transition(ctx, ticketID, store.AllowedFrom("call"), models.StatusCalled, store.TransitionFields{
		CalledAt: &now,
		ServedBy: &actor,
	})
	e.mu.Unlock()
	if err != nil {
		return models.Ticket{}, err
	}

	// A called ticket still occupies its waiting slot.
	e.publish([]notify.Event{ticketEvent(notify.KindTicketCalled, ticket)})
	return ticket, nil
}

// Serve moves a called ticket to serving and frees its waiting slot.
func (e *Engine) Serve(ctx context.Context, ticketID int64) (models.Ticket, error) {
	e.mu.Lock()
	now := e.now()
	ticket, err := e.tickets.Transition(ctx, ticketID, store.AllowedFrom("serve"), models.StatusServing, store.TransitionFields{
		ServedAt: &now,
	})
	if err != nil {
		e.mu.Unlock()
		return models.Ticket{}, err
	}
	e.counters.Decrement(ticket.DepartmentID)
	events := []notify.Event{
		ticketEvent(notify.KindTicketServing, ticket),
		e.departmentEvent(ticket),
	}
	e.mu.Unlock()

	e.publish(events)
	return ticket, nil
}

// Complete finishes a serving ticket.
func (e *Engine) Complete(ctx context.Context, ticketID int64) (models.Ticket, error) {
	e.mu.Lock()
	now := e.now()
	ticket, err := e.tickets.Transition(ctx, ticketID, store.AllowedFrom("complete"), models.StatusCompleted, store.TransitionFields{
		CompletedAt: &now,
	})
	e.mu.Unlock()
	if err != nil {
		return models.Ticket{}, err
	}

	e.publish([]notify.Event{ticketEvent(notify.KindTicketCompleted, ticket)})
	return ticket, nil
}

// Cancel aborts a ticket from any non-terminal status. When the ticket
// was still waiting or called it also releases its waiting slot; a
// serving ticket already gave the slot up at serve time.
func (e *Engine) Cancel(ctx context.Context, ticketID int64, actor string) (models.Ticket, error) {
	if strings.TrimSpace(actor) == "" {
		return models.Ticket{}, fmt.Errorf("%w: actor is required", store.ErrValidation)
	}

	e.mu.Lock()
	prior, err := e.tickets.Get(ctx, ticketID)
	if err != nil {
		e.mu.Unlock()
		return models.Ticket{}, err
	}
	if !store.ValidTransition("cancel", prior.Status) {
		e.mu.Unlock()
		return models.Ticket{}, store.ErrInvalidTransition
	}

	now := e.now()
	ticket, err := e.tickets.Transition(ctx, ticketID, []models.Status{prior.Status}, models.StatusCancelled, store.TransitionFields{
		CompletedAt: &now,
		ServedBy:    &actor,
	})
	if err != nil {
		e.mu.Unlock()
		return models.Ticket{}, err
	}

	events := []notify.Event{ticketEvent(notify.KindTicketCancelled, ticket)}
	if prior.Status == models.StatusWaiting || prior.Status == models.StatusCalled {
		e.counters.Decrement(ticket.DepartmentID)
		events = append(events, e.departmentEvent(ticket))
	}
	e.mu.Unlock()

	e.publish(events)
	return ticket, nil
}

// RedirectResult holds the closed original ticket and the linked ticket
// opened in the destination department.
type RedirectResult struct {
	Original models.Ticket `json:"original"`
	Created  models.Ticket `json:"created"`
}

// Redirect terminates a serving ticket and opens a linked waiting ticket
// for the destination service. The new ticket keeps the original's
// sequence digits under the destination department's letter prefix; only
// the prefix changes, so the digits can collide with an organically
// issued number in that department on the same day.
func (e *Engine) Redirect(ctx context.Context, ticketID int64, actor, newDepartmentID, newServiceID string) (RedirectResult, error) {
	if strings.TrimSpace(actor) == "" {
		return RedirectResult{}, fmt.Errorf("%w: actor is required", store.ErrValidation)
	}

	svc, dept, err := e.resolveTarget(ctx, newServiceID)
	if err != nil {
		return RedirectResult{}, err
	}
	if newDepartmentID != "" && newDepartmentID != svc.DepartmentID {
		return RedirectResult{}, fmt.Errorf("%w: service %s does not belong to department %s", store.ErrValidation, newServiceID, newDepartmentID)
	}

	prior, err := e.tickets.Get(ctx, ticketID)
	if err != nil {
		return RedirectResult{}, err
	}
	fromName := ""
	if fromDept, err := e.directory.ResolveDepartment(ctx, prior.DepartmentID); err == nil {
		fromName = fromDept.Name
	}

	e.mu.Lock()
	now := e.now()
	original, err := e.tickets.Transition(ctx, ticketID, store.AllowedFrom("redirect"), models.StatusRedirected, store.TransitionFields{
		CompletedAt: &now,
		ServedBy:    &actor,
	})
	if err != nil {
		e.mu.Unlock()
		return RedirectResult{}, err
	}

	created, events, err := e.createLocked(ctx, svc, dept, original.CustomerID, original.Sequence, &fromName, now)
	e.mu.Unlock()
	if err != nil {
		return RedirectResult{}, err
	}

	e.publish(append([]notify.Event{ticketEvent(notify.KindTicketRedirected, original)}, events...))
	return RedirectResult{Original: original, Created: created}, nil
}

// Get returns a ticket by id.
func (e *Engine) Get(ctx context.Context, ticketID int64) (models.Ticket, error) {
	return e.tickets.Get(ctx, ticketID)
}

// Query lists tickets for history and reporting consumers.
func (e *Engine) Query(ctx context.Context, q store.Query) ([]models.Ticket, error) {
	return e.tickets.Query(ctx, q)
}

// Purge removes a terminal-state ticket from history.
func (e *Engine) Purge(ctx context.Context, ticketID int64) error {
	return e.tickets.Purge(ctx, ticketID)
}

// WaitingCount returns one department's cached waiting count.
func (e *Engine) WaitingCount(departmentID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.counters.WaitingCount(departmentID)
}

// WaitingCounts returns the waiting count of every known department.
func (e *Engine) WaitingCounts() map[string]int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.counters.Snapshot()
}

// Recount resynchronizes one department's waiting count from the ticket
// store, the recovery path when the cache is suspected stale.
func (e *Engine) Recount(ctx context.Context, departmentID string) (int, error) {
	tickets, err := e.tickets.Query(ctx, store.Query{
		DepartmentID: departmentID,
		Statuses:     []models.Status{models.StatusWaiting, models.StatusCalled},
		CreatedFrom:  startOfDay(e.now()),
	})
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	count := e.counters.Recount(departmentID, tickets)
	e.mu.Unlock()

	e.publish([]notify.Event{{
		Kind:         notify.KindDepartmentUpdated,
		DepartmentID: departmentID,
		WaitingCount: count,
	}})
	return count, nil
}

// Recover rebuilds the whole waiting-count cache from the store, used at
// startup when tickets are persisted.
func (e *Engine) Recover(ctx context.Context) error {
	tickets, err := e.tickets.Query(ctx, store.Query{
		Statuses:    []models.Status{models.StatusWaiting, models.StatusCalled},
		CreatedFrom: startOfDay(e.now()),
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.counters.Reset(tickets)
	e.mu.Unlock()
	return nil
}

// resolveTarget validates that serviceID names an active service attached
// to an active department and returns both.
func (e *Engine) resolveTarget(ctx context.Context, serviceID string) (models.Service, models.Department, error) {
	svc, err := e.directory.ResolveService(ctx, serviceID)
	if err != nil {
		return models.Service{}, models.Department{}, err
	}
	if !svc.Active {
		return models.Service{}, models.Department{}, store.ErrServiceInactive
	}
	if svc.DepartmentID == "" {
		return models.Service{}, models.Department{}, store.ErrServiceUnassigned
	}

	dept, err := e.directory.ResolveDepartment(ctx, svc.DepartmentID)
	if err != nil {
		return models.Service{}, models.Department{}, err
	}
	if !dept.Active {
		return models.Service{}, models.Department{}, store.ErrDepartmentInactive
	}
	return svc, dept, nil
}

// createLocked inserts a waiting ticket and bumps the department counter.
// Callers hold the write lock.
func (e *Engine) createLocked(ctx context.Context, svc models.Service, dept models.Department, customerID string, seq int, redirectedFrom *string, now time.Time) (models.Ticket, []notify.Event, error) {
	ticket := models.Ticket{
		CompanyID:      svc.CompanyID,
		DepartmentID:   svc.DepartmentID,
		ServiceID:      svc.ServiceID,
		CustomerID:     customerID,
		Number:         FormatNumber(dept.Name, seq),
		Sequence:       seq,
		Status:         models.StatusWaiting,
		CreatedAt:      now,
		RedirectedFrom: redirectedFrom,
	}

	created, err := e.tickets.Create(ctx, ticket)
	if err != nil {
		return models.Ticket{}, nil, err
	}
	e.counters.Increment(created.DepartmentID)

	events := []notify.Event{
		ticketEvent(notify.KindTicketCreated, created),
		e.departmentEvent(created),
	}
	return created, events, nil
}

func (e *Engine) departmentEvent(ticket models.Ticket) notify.Event {
	return notify.Event{
		Kind:         notify.KindDepartmentUpdated,
		CompanyID:    ticket.CompanyID,
		DepartmentID: ticket.DepartmentID,
		WaitingCount: e.counters.WaitingCount(ticket.DepartmentID),
	}
}

func ticketEvent(kind notify.Kind, ticket models.Ticket) notify.Event {
	t := ticket
	return notify.Event{
		Kind:         kind,
		Ticket:       &t,
		CompanyID:    ticket.CompanyID,
		DepartmentID: ticket.DepartmentID,
	}
}

func (e *Engine) publish(events []notify.Event) {
	if e.notifier == nil {
		return
	}
	for _, event := range events {
		e.notifier.Publish(event)
	}
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
