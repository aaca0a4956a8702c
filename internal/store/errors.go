package store

import "errors"

var (
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrServiceNotFound    = errors.New("service not found")
	ErrDepartmentNotFound = errors.New("department not found")
	ErrInvalidTransition  = errors.New("invalid ticket transition")
	ErrServiceInactive    = errors.New("service inactive")
	ErrServiceUnassigned  = errors.New("service not assigned to a department")
	ErrDepartmentInactive = errors.New("department inactive")
	ErrValidation         = errors.New("invalid input")
	ErrNotTerminal        = errors.New("ticket not in a terminal state")
)
