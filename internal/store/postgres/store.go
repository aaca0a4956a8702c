package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/BIecoSRL/aweyt/internal/models"
	"github.com/BIecoSRL/aweyt/internal/sequence"
	"github.com/BIecoSRL/aweyt/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the pgx-backed TicketStore. Transition relies on a single
// conditional UPDATE so concurrent actions on one ticket resolve to
// exactly one winner inside the database.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const ticketColumns = `id, company_id, department_id, service_id, customer_id, number, sequence, status, created_at, called_at, served_at, completed_at, served_by, redirected_from`

func (s *Store) Create(ctx context.Context, ticket models.Ticket) (models.Ticket, error) {
	if ticket.ServiceID == "" || ticket.DepartmentID == "" {
		return models.Ticket{}, store.ErrValidation
	}

	createdAt := ticket.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO tickets (
			company_id, department_id, service_id, customer_id, number, sequence,
			status, created_at, redirected_from
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+ticketColumns+`
	`, nullIfEmpty(ticket.CompanyID), ticket.DepartmentID, ticket.ServiceID, nullIfEmpty(ticket.CustomerID),
		ticket.Number, ticket.Sequence, models.StatusWaiting, createdAt, ticket.RedirectedFrom)

	return scanTicket(row)
}

func (s *Store) Get(ctx context.Context, id int64) (models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE id = $1
	`, id)

	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) Transition(ctx context.Context, id int64, from []models.Status, to models.Status, fields store.TransitionFields) (models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE tickets
		SET status = $2,
			called_at = COALESCE($3, called_at),
			served_at = COALESCE($4, served_at),
			completed_at = COALESCE($5, completed_at),
			served_by = COALESCE($6, served_by)
		WHERE id = $1 AND status = ANY($7)
		RETURNING `+ticketColumns+`
	`, id, to, fields.CalledAt, fields.ServedAt, fields.CompletedAt, fields.ServedBy, statusStrings(from))

	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the ticket is missing or its status lost the race.
			if _, getErr := s.Get(ctx, id); getErr != nil {
				return models.Ticket{}, getErr
			}
			return models.Ticket{}, store.ErrInvalidTransition
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE 1=1`
	var args []interface{}

	if q.CompanyID != "" {
		args = append(args, q.CompanyID)
		query += ` AND company_id = $` + strconv.Itoa(len(args))
	}
	if q.DepartmentID != "" {
		args = append(args, q.DepartmentID)
		query += ` AND department_id = $` + strconv.Itoa(len(args))
	}
	if len(q.Statuses) > 0 {
		args = append(args, statusStrings(q.Statuses))
		query += ` AND status = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	if !q.CreatedFrom.IsZero() {
		args = append(args, q.CreatedFrom)
		query += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	if !q.CreatedTo.IsZero() {
		args = append(args, q.CreatedTo)
		query += ` AND created_at < $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *Store) Purge(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM tickets
		WHERE id = $1 AND status = ANY($2)
	`, id, statusStrings([]models.Status{models.StatusCompleted, models.StatusCancelled, models.StatusRedirected}))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return store.ErrNotTerminal
	}
	return nil
}

// Allocator issues sequence numbers from the ticket_sequences table, one
// row per (department, date). The upsert increments and returns in one
// statement, so concurrent callers never see the same number.
type Allocator struct {
	pool *pgxpool.Pool
}

func NewAllocator(pool *pgxpool.Pool) *Allocator {
	return &Allocator{pool: pool}
}

func (a *Allocator) Next(ctx context.Context, departmentID string, day time.Time) (int, error) {
	var next int
	row := a.pool.QueryRow(ctx, `
		INSERT INTO ticket_sequences (department_id, seq_date, next_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (department_id, seq_date)
		DO UPDATE SET next_number = ticket_sequences.next_number + 1
		RETURNING next_number
	`, departmentID, sequence.DayKey(day))
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

// Catalog resolves services and departments from their tables.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (c *Catalog) ResolveService(ctx context.Context, serviceID string) (models.Service, error) {
	var svc models.Service
	var departmentIDNull sql.NullString
	var companyIDNull sql.NullString
	row := c.pool.QueryRow(ctx, `
		SELECT service_id, department_id, company_id, name, avg_minutes, active
		FROM services
		WHERE service_id = $1
	`, serviceID)
	if err := row.Scan(&svc.ServiceID, &departmentIDNull, &companyIDNull, &svc.Name, &svc.AvgMinutes, &svc.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Service{}, store.ErrServiceNotFound
		}
		return models.Service{}, err
	}
	if departmentIDNull.Valid {
		svc.DepartmentID = departmentIDNull.String
	}
	if companyIDNull.Valid {
		svc.CompanyID = companyIDNull.String
	}
	return svc, nil
}

func (c *Catalog) ResolveDepartment(ctx context.Context, departmentID string) (models.Department, error) {
	var dept models.Department
	var companyIDNull sql.NullString
	row := c.pool.QueryRow(ctx, `
		SELECT department_id, company_id, name, active
		FROM departments
		WHERE department_id = $1
	`, departmentID)
	if err := row.Scan(&dept.DepartmentID, &companyIDNull, &dept.Name, &dept.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Department{}, store.ErrDepartmentNotFound
		}
		return models.Department{}, err
	}
	if companyIDNull.Valid {
		dept.CompanyID = companyIDNull.String
	}
	return dept, nil
}

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var ticket models.Ticket
	var companyIDNull sql.NullString
	var customerIDNull sql.NullString
	var calledAtNull sql.NullTime
	var servedAtNull sql.NullTime
	var completedAtNull sql.NullTime
	var servedByNull sql.NullString
	var redirectedFromNull sql.NullString

	if err := row.Scan(&ticket.ID, &companyIDNull, &ticket.DepartmentID, &ticket.ServiceID, &customerIDNull,
		&ticket.Number, &ticket.Sequence, &ticket.Status, &ticket.CreatedAt,
		&calledAtNull, &servedAtNull, &completedAtNull, &servedByNull, &redirectedFromNull); err != nil {
		return models.Ticket{}, err
	}

	if companyIDNull.Valid {
		ticket.CompanyID = companyIDNull.String
	}
	if customerIDNull.Valid {
		ticket.CustomerID = customerIDNull.String
	}
	ticket.CalledAt = nullTimePtr(calledAtNull)
	ticket.ServedAt = nullTimePtr(servedAtNull)
	ticket.CompletedAt = nullTimePtr(completedAtNull)
	ticket.ServedBy = nullStringPtr(servedByNull)
	ticket.RedirectedFrom = nullStringPtr(redirectedFromNull)
	return ticket, nil
}

func statusStrings(statuses []models.Status) []string {
	values := make([]string, len(statuses))
	for i, status := range statuses {
		values[i] = string(status)
	}
	return values
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
