package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/queue-engine/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// ListByQueue returns every ticket of the queue that is not closed.
	ListByQueue(ctx context.Context, queueID string) ([]domain.Ticket, error)
	// UpdateStatus persists status, resolution note and closed_at when the
	// stored updated_at still equals expectedUpdatedAt.
	UpdateStatus(ctx context.Context, ticket *domain.Ticket, expectedUpdatedAt time.Time) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `
        id, external_key, queue_id, title, status, priority, due_at, assignee_agent_id,
        skills, vip_weight, resolution_note, created_at, updated_at, closed_at`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return ticket, nil
}

func (r *ticketRepository) ListByQueue(ctx context.Context, queueID string) ([]domain.Ticket, error) {
	query := `SELECT` + ticketColumns + `
        FROM tickets WHERE queue_id=$1 AND status <> $2
        ORDER BY due_at ASC NULLS LAST, created_at ASC`
	rows, err := r.pool.Query(ctx, query, queueID, domain.TicketStatusClosed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, ticket *domain.Ticket, expectedUpdatedAt time.Time) error {
	const query = `
        UPDATE tickets SET status=$1, resolution_note=$2, closed_at=$3, updated_at=NOW()
        WHERE id=$4 AND updated_at=$5
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.Status,
		ticket.ResolutionNote,
		ticket.ClosedAt,
		ticket.ID,
		expectedUpdatedAt,
	).Scan(&ticket.UpdatedAt)
	if err == pgx.ErrNoRows {
		return ErrVersionConflict
	}
	return err
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := row.Scan(
		&t.ID,
		&t.ExternalKey,
		&t.QueueID,
		&t.Title,
		&t.Status,
		&t.Priority,
		&t.DueAt,
		&t.AssigneeID,
		&t.Skills,
		&t.VIPWeight,
		&t.ResolutionNote,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}
