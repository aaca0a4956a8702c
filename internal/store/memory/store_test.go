package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BIecoSRL/aweyt/internal/models"
	"github.com/BIecoSRL/aweyt/internal/store"
)

func newTicket(departmentID string) models.Ticket {
	return models.Ticket{
		DepartmentID: departmentID,
		ServiceID:    "svc-1",
		CompanyID:    "co-1",
		Number:       "A001",
		Sequence:     1,
		CreatedAt:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestCreateAssignsMonotonicIDs(t *testing.T) {
	ctx := context.Background()
	st := NewStore()

	first, err := st.Create(ctx, newTicket("dept-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := st.Create(ctx, newTicket("dept-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if first.ID <= 0 || second.ID <= first.ID {
		t.Fatalf("expected increasing ids, got %d then %d", first.ID, second.ID)
	}
	if first.Status != models.StatusWaiting {
		t.Fatalf("expected waiting status, got %q", first.Status)
	}
}

func TestCreateRejectsMissingReferences(t *testing.T) {
	ctx := context.Background()
	st := NewStore()

	_, err := st.Create(ctx, models.Ticket{ServiceID: "svc-1"})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestTransitionAppliesFields(t *testing.T) {
	ctx := context.Background()
	st := NewStore()

	ticket, err := st.Create(ctx, newTicket("dept-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	calledAt := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)
	actor := "staff-1"
	updated, err := st.Transition(ctx, ticket.ID, []models.Status{models.StatusWaiting}, models.StatusCalled, store.TransitionFields{
		CalledAt: &calledAt,
		ServedBy: &actor,
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}

	if updated.Status != models.StatusCalled {
		t.Fatalf("expected called, got %q", updated.Status)
	}
	if updated.CalledAt == nil || !updated.CalledAt.Equal(calledAt) {
		t.Fatalf("unexpected calledAt: %v", updated.CalledAt)
	}
	if updated.ServedBy == nil || *updated.ServedBy != actor {
		t.Fatalf("unexpected servedBy: %v", updated.ServedBy)
	}
}

func TestTransitionRejectsWrongStatus(t *testing.T) {
	ctx := context.Background()
	st := NewStore()

	ticket, err := st.Create(ctx, newTicket("dept-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = st.Transition(ctx, ticket.ID, []models.Status{models.StatusCalled}, models.StatusServing, store.TransitionFields{})
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	unchanged, err := st.Get(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if unchanged.Status != models.StatusWaiting {
		t.Fatalf("failed transition must leave status unchanged, got %q", unchanged.Status)
	}
}

func TestTransitionUnknownTicket(t *testing.T) {
	ctx := context.Background()
	st := NewStore()

	_, err := st.Transition(ctx, 99, []models.Status{models.StatusWaiting}, models.StatusCalled, store.TransitionFields{})
	if !errors.Is(err, store.ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestConcurrentTransitionSingleWinner(t *testing.T) {
	ctx := context.Background()
	st := NewStore()

	ticket, err := st.Create(ctx, newTicket("dept-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const attempts = 16
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			at := time.Now().UTC()
			_, err := st.Transition(ctx, ticket.ID, []models.Status{models.StatusWaiting}, models.StatusCalled, store.TransitionFields{CalledAt: &at})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	won := 0
	for err := range errs {
		if err == nil {
			won++
		} else if !errors.Is(err, store.ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly one winning transition, got %d", won)
	}
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	st := NewStore()

	a := newTicket("dept-1")
	b := newTicket("dept-2")
	b.CreatedAt = a.CreatedAt.Add(2 * time.Hour)

	first, _ := st.Create(ctx, a)
	second, _ := st.Create(ctx, b)

	actor := "staff-1"
	at := b.CreatedAt.Add(time.Minute)
	if _, err := st.Transition(ctx, second.ID, []models.Status{models.StatusWaiting}, models.StatusCancelled, store.TransitionFields{CompletedAt: &at, ServedBy: &actor}); err != nil {
		t.Fatalf("transition: %v", err)
	}

	byDept, err := st.Query(ctx, store.Query{DepartmentID: "dept-1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byDept) != 1 || byDept[0].ID != first.ID {
		t.Fatalf("unexpected department query result: %+v", byDept)
	}

	cancelled, err := st.Query(ctx, store.Query{Statuses: []models.Status{models.StatusCancelled}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(cancelled) != 1 || cancelled[0].ID != second.ID {
		t.Fatalf("unexpected status query result: %+v", cancelled)
	}

	window, err := st.Query(ctx, store.Query{CreatedFrom: a.CreatedAt.Add(time.Hour)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(window) != 1 || window[0].ID != second.ID {
		t.Fatalf("unexpected range query result: %+v", window)
	}
}

func TestPurgeTerminalOnly(t *testing.T) {
	ctx := context.Background()
	st := NewStore()

	ticket, _ := st.Create(ctx, newTicket("dept-1"))

	if err := st.Purge(ctx, ticket.ID); !errors.Is(err, store.ErrNotTerminal) {
		t.Fatalf("expected ErrNotTerminal, got %v", err)
	}

	at := time.Now().UTC()
	if _, err := st.Transition(ctx, ticket.ID, []models.Status{models.StatusWaiting}, models.StatusCancelled, store.TransitionFields{CompletedAt: &at}); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := st.Purge(ctx, ticket.ID); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := st.Get(ctx, ticket.ID); !errors.Is(err, store.ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound after purge, got %v", err)
	}

	// Ids are never reused after a purge.
	next, _ := st.Create(ctx, newTicket("dept-1"))
	if next.ID <= ticket.ID {
		t.Fatalf("expected id above %d, got %d", ticket.ID, next.ID)
	}
}
