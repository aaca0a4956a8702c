package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BIecoSRL/aweyt/internal/models"
	"github.com/BIecoSRL/aweyt/internal/queue"
	"github.com/BIecoSRL/aweyt/internal/store"

	"github.com/google/uuid"
)

// Engine is the queue surface the HTTP layer drives.
type Engine interface {
	Generate(ctx context.Context, serviceID, customerID string) (models.Ticket, error)
	Call(ctx context.Context, ticketID int64, actor string) (models.Ticket, error)
	Serve(ctx context.Context, ticketID int64) (models.Ticket, error)
	Complete(ctx context.Context, ticketID int64) (models.Ticket, error)
	Cancel(ctx context.Context, ticketID int64, actor string) (models.Ticket, error)
	Redirect(ctx context.Context, ticketID int64, actor, departmentID, serviceID string) (queue.RedirectResult, error)
	Get(ctx context.Context, ticketID int64) (models.Ticket, error)
	Query(ctx context.Context, q store.Query) ([]models.Ticket, error)
	Purge(ctx context.Context, ticketID int64) error
	WaitingCounts() map[string]int
	Recount(ctx context.Context, departmentID string) (int, error)
}

type Handler struct {
	engine Engine
}

type createTicketRequest struct {
	RequestID  string `json:"request_id"`
	ServiceID  string `json:"service_id"`
	CustomerID string `json:"customer_id"`
}

type ticketActionRequest struct {
	RequestID string `json:"request_id"`
	Actor     string `json:"actor"`
}

type redirectRequest struct {
	RequestID     string `json:"request_id"`
	Actor         string `json:"actor"`
	NewDepartment string `json:"new_department_id"`
	NewServiceID  string `json:"new_service_id"`
}

type waitingCountsResponse struct {
	Departments map[string]int `json:"departments"`
}

type recountResponse struct {
	DepartmentID string `json:"department_id"`
	WaitingCount int    `json:"waiting_count"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(engine Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/tickets", h.handleTickets)
	mux.HandleFunc("/api/tickets/", h.handleTicket)
	mux.HandleFunc("/api/departments/waiting", h.handleWaitingCounts)
	mux.HandleFunc("/api/departments/", h.handleDepartmentActions)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleTickets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateTicket(w, r)
	case http.MethodGet:
		h.handleListTickets(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.CustomerID = strings.TrimSpace(req.CustomerID)

	if req.ServiceID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "service_id is required")
		return
	}
	if req.RequestID != "" && !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID when provided")
		return
	}

	ticket, err := h.engine.Generate(r.Context(), req.ServiceID, req.CustomerID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	writeJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) handleListTickets(w http.ResponseWriter, r *http.Request) {
	q := store.Query{
		CompanyID:    strings.TrimSpace(r.URL.Query().Get("company_id")),
		DepartmentID: strings.TrimSpace(r.URL.Query().Get("department_id")),
	}

	for _, raw := range r.URL.Query()["status"] {
		status := models.Status(strings.TrimSpace(raw))
		switch status {
		case models.StatusWaiting, models.StatusCalled, models.StatusServing,
			models.StatusCompleted, models.StatusCancelled, models.StatusRedirected:
			q.Statuses = append(q.Statuses, status)
		default:
			writeError(w, "", http.StatusBadRequest, "invalid_request", "unknown status "+raw)
			return
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "from must be an RFC3339 timestamp")
			return
		}
		q.CreatedFrom = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "to must be an RFC3339 timestamp")
			return
		}
		q.CreatedTo = parsed
	}

	tickets, err := h.engine.Query(r.Context(), q)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}

	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) handleTicket(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tickets/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	ticketID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || ticketID <= 0 {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "ticket id must be a positive integer")
		return
	}

	switch len(parts) {
	case 1:
		switch r.Method {
		case http.MethodGet:
			h.handleGetTicket(w, r, ticketID)
		case http.MethodDelete:
			h.handlePurgeTicket(w, r, ticketID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case 3:
		if parts[1] != "actions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleTicketAction(w, r, ticketID, parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request, ticketID int64) {
	ticket, err := h.engine.Get(r.Context(), ticketID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handlePurgeTicket(w http.ResponseWriter, r *http.Request, ticketID int64) {
	if err := h.engine.Purge(r.Context(), ticketID); err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTicketAction(w http.ResponseWriter, r *http.Request, ticketID int64, action string) {
	switch action {
	case "call", "serve", "complete", "cancel":
		var req ticketActionRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		var (
			ticket models.Ticket
			err    error
		)
		switch action {
		case "call":
			ticket, err = h.engine.Call(r.Context(), ticketID, req.Actor)
		case "serve":
			ticket, err = h.engine.Serve(r.Context(), ticketID)
		case "complete":
			ticket, err = h.engine.Complete(r.Context(), ticketID)
		case "cancel":
			ticket, err = h.engine.Cancel(r.Context(), ticketID, req.Actor)
		}
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, req.RequestID, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, ticket)

	case "redirect":
		var req redirectRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if req.NewServiceID == "" {
			writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "new_service_id is required")
			return
		}

		result, err := h.engine.Redirect(r.Context(), ticketID, req.Actor, req.NewDepartment, req.NewServiceID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, req.RequestID, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, result)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleWaitingCounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	counts := h.engine.WaitingCounts()
	if counts == nil {
		counts = map[string]int{}
	}
	writeJSON(w, http.StatusOK, waitingCountsResponse{Departments: counts})
}

func (h *Handler) handleDepartmentActions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/departments/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[1] != "actions" || parts[2] != "recount" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	departmentID := strings.TrimSpace(parts[0])
	if departmentID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "department id is required")
		return
	}

	count, err := h.engine.Recount(r.Context(), departmentID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, recountResponse{DepartmentID: departmentID, WaitingCount: count})
}

func decodeRequest(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}

	switch t := target.(type) {
	case *ticketActionRequest:
		t.RequestID = strings.TrimSpace(t.RequestID)
		t.Actor = strings.TrimSpace(t.Actor)
		if t.RequestID != "" && !isValidUUID(t.RequestID) {
			writeError(w, t.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID when provided")
			return false
		}
	case *redirectRequest:
		t.RequestID = strings.TrimSpace(t.RequestID)
		t.Actor = strings.TrimSpace(t.Actor)
		t.NewDepartment = strings.TrimSpace(t.NewDepartment)
		t.NewServiceID = strings.TrimSpace(t.NewServiceID)
		if t.RequestID != "" && !isValidUUID(t.RequestID) {
			writeError(w, t.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID when provided")
			return false
		}
	default:
		writeError(w, "", http.StatusBadRequest, "invalid_request", "invalid request payload")
		return false
	}

	return true
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrServiceNotFound):
		return http.StatusNotFound, "service_not_found", "service not found"
	case errors.Is(err, store.ErrDepartmentNotFound):
		return http.StatusNotFound, "department_not_found", "department not found"
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", "ticket status does not allow this action"
	case errors.Is(err, store.ErrServiceInactive):
		return http.StatusConflict, "service_inactive", "service is not active"
	case errors.Is(err, store.ErrServiceUnassigned):
		return http.StatusConflict, "service_unassigned", "service has no department"
	case errors.Is(err, store.ErrDepartmentInactive):
		return http.StatusConflict, "department_inactive", "department is not active"
	case errors.Is(err, store.ErrNotTerminal):
		return http.StatusConflict, "ticket_active", "only finished tickets can be deleted"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
