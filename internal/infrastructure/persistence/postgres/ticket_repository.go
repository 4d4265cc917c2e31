package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/soukmarket/settlement/internal/domain"
	"github.com/soukmarket/settlement/internal/infrastructure/persistence"
)

const ticketColumns = `
	id, title, description, status, priority, creator_id, assignee_id, order_id,
	created_at, updated_at
`

type TicketRepository struct {
	q persistence.Executor
}

func NewTicketRepository(q persistence.Executor) *TicketRepository {
	return &TicketRepository{q: q}
}

func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	query := `
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.Exec(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.CreatorID,
		ticket.AssigneeID,
		ticket.OrderID,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

func (r *TicketRepository) FindByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	var m ticketModel
	err := r.q.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Title, &m.Description, &m.Status, &m.Priority, &m.CreatorID, &m.AssigneeID, &m.OrderID,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewTicketNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to scan ticket: %w", err)
	}
	return ticketToDomain(m), nil
}

func (r *TicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	query := `
		UPDATE tickets
		SET status = $2, priority = $3, assignee_id = $4, updated_at = $5
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		ticket.ID,
		ticket.Status,
		ticket.Priority,
		ticket.AssigneeID,
		ticket.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewTicketNotFoundError(ticket.ID)
	}
	return nil
}

// FindStale selects open tickets that have not been touched since the cutoff,
// for the hourly auto-escalation sweep.
func (r *TicketRepository) FindStale(ctx context.Context, updatedBefore time.Time, limit int) ([]*domain.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE status IN ('Open', 'InProgress')
		  AND updated_at <= $1
		ORDER BY updated_at ASC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, updatedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale tickets: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Ticket, error) {
		var m ticketModel
		err := row.Scan(
			&m.ID, &m.Title, &m.Description, &m.Status, &m.Priority, &m.CreatorID, &m.AssigneeID, &m.OrderID,
			&m.CreatedAt, &m.UpdatedAt,
		)
		return ticketToDomain(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan stale tickets: %w", err)
	}
	return results, nil
}
