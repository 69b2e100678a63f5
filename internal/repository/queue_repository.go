package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/queue-engine/internal/domain"
)

// QueueRepository reads queue definitions.
type QueueRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Queue, error)
	ListActive(ctx context.Context) ([]domain.Queue, error)
}

type queueRepository struct {
	pool *pgxpool.Pool
}

// NewQueueRepository instantiates repository.
func NewQueueRepository(pool *pgxpool.Pool) QueueRepository {
	return &queueRepository{pool: pool}
}

const queueColumns = `
        q.id, q.name, q.queue_type, q.sla_target_minutes, q.sla_warning_minutes,
        q.max_tickets_per_agent, q.auto_assignment, q.priority_weighting, q.skill_matching,
        q.active, q.created_at, q.updated_at,
        COALESCE(ARRAY(SELECT qa.agent_id::text FROM queue_agents qa WHERE qa.queue_id = q.id ORDER BY qa.agent_id), '{}')`

func (r *queueRepository) GetByID(ctx context.Context, id string) (*domain.Queue, error) {
	query := `SELECT` + queueColumns + ` FROM queues q WHERE q.id=$1`
	queue, err := scanQueue(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return queue, nil
}

func (r *queueRepository) ListActive(ctx context.Context) ([]domain.Queue, error) {
	query := `SELECT` + queueColumns + ` FROM queues q WHERE q.active ORDER BY q.name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Queue
	for rows.Next() {
		queue, err := scanQueue(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *queue)
	}
	return result, rows.Err()
}

func scanQueue(row pgx.Row) (*domain.Queue, error) {
	var q domain.Queue
	if err := row.Scan(
		&q.ID,
		&q.Name,
		&q.Type,
		&q.SLATargetMinutes,
		&q.SLAWarningMinutes,
		&q.Rules.MaxTicketsPerAgent,
		&q.Rules.AutoAssignment,
		&q.Rules.PriorityWeighting,
		&q.Rules.SkillMatching,
		&q.Active,
		&q.CreatedAt,
		&q.UpdatedAt,
		&q.AgentIDs,
	); err != nil {
		return nil, err
	}
	return &q, nil
}
