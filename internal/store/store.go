package store

import (
	"context"
	"time"

	"github.com/BIecoSRL/aweyt/internal/models"
)

// TransitionFields carries the timestamp/actor fields a transition sets.
// Nil fields are left untouched; each ticket field is written at most once
// over its lifetime because every transition targets a distinct field.
type TransitionFields struct {
	CalledAt    *time.Time
	ServedAt    *time.Time
	CompletedAt *time.Time
	ServedBy    *string
}

// Query filters tickets for history and reporting reads.
// Zero-valued fields are ignored.
type Query struct {
	CompanyID    string
	DepartmentID string
	Statuses     []models.Status
	CreatedFrom  time.Time
	CreatedTo    time.Time
}

// Matches reports whether t satisfies every set filter of q.
func (q Query) Matches(t models.Ticket) bool {
	if q.CompanyID != "" && t.CompanyID != q.CompanyID {
		return false
	}
	if q.DepartmentID != "" && t.DepartmentID != q.DepartmentID {
		return false
	}
	if len(q.Statuses) > 0 {
		found := false
		for _, s := range q.Statuses {
			if t.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !q.CreatedFrom.IsZero() && t.CreatedAt.Before(q.CreatedFrom) {
		return false
	}
	if !q.CreatedTo.IsZero() && !t.CreatedAt.Before(q.CreatedTo) {
		return false
	}
	return true
}

// TicketStore owns ticket records and is the sole writer of ticket state.
//
// Transition is the single mutation primitive: it atomically verifies the
// current status is a member of from, applies to plus the given fields, and
// returns the updated ticket. A ticket in a status outside from yields
// ErrInvalidTransition and no change.
type TicketStore interface {
	Create(ctx context.Context, ticket models.Ticket) (models.Ticket, error)
	Get(ctx context.Context, id int64) (models.Ticket, error)
	Transition(ctx context.Context, id int64, from []models.Status, to models.Status, fields TransitionFields) (models.Ticket, error)
	Query(ctx context.Context, q Query) ([]models.Ticket, error)
	// Purge removes a terminal-state ticket from history. Non-terminal
	// tickets are refused with ErrNotTerminal.
	Purge(ctx context.Context, id int64) error
}
