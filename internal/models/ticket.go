package models

import "time"

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusCalled     Status = "called"
	StatusServing    Status = "serving"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusRedirected Status = "redirected"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRedirected:
		return true
	}
	return false
}

type Ticket struct {
	ID             int64      `json:"id"`
	CompanyID      string     `json:"company_id,omitempty"`
	DepartmentID   string     `json:"department_id"`
	ServiceID      string     `json:"service_id"`
	CustomerID     string     `json:"customer_id,omitempty"`
	Number         string     `json:"number"`
	Sequence       int        `json:"sequence"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	CalledAt       *time.Time `json:"called_at,omitempty"`
	ServedAt       *time.Time `json:"served_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ServedBy       *string    `json:"served_by,omitempty"`
	RedirectedFrom *string    `json:"redirected_from,omitempty"`
}
