package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/queue-engine/internal/domain"
)

// AgentRepository handles persistence for agents.
type AgentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	GetByEmail(ctx context.Context, email string) (*domain.Agent, error)
	ListByQueue(ctx context.Context, queueID string) ([]domain.Agent, error)
	// SetAvailability writes the agent status. expectedVersion 0 skips the
	// version check. Writing the current status and reason is a no-op that
	// returns the stored agent.
	SetAvailability(ctx context.Context, agentID string, status domain.AgentStatus, reason string, expectedVersion int64) (*domain.Agent, error)
}

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository instantiates the repository.
func NewAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &agentRepository{pool: pool}
}

const agentColumns = `
        a.id, a.name, a.email, a.password_hash, a.role, a.status, a.status_reason,
        a.current_ticket_count, a.max_capacity, a.skills,
        a.avg_resolution_minutes, a.success_rate, a.satisfaction,
        a.version, a.created_at, a.updated_at`

func (r *agentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	query := `SELECT` + agentColumns + ` FROM agents a WHERE a.id=$1`
	agent, err := scanAgent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return agent, nil
}

func (r *agentRepository) GetByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	query := `SELECT` + agentColumns + ` FROM agents a WHERE a.email=$1`
	agent, err := scanAgent(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return agent, nil
}

func (r *agentRepository) ListByQueue(ctx context.Context, queueID string) ([]domain.Agent, error) {
	query := `SELECT` + agentColumns + `
        FROM agents a JOIN queue_agents qa ON qa.agent_id = a.id
        WHERE qa.queue_id=$1 ORDER BY a.id`
	rows, err := r.pool.Query(ctx, query, queueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Agent{}
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *agent)
	}
	return result, rows.Err()
}

func (r *agentRepository) SetAvailability(ctx context.Context, agentID string, status domain.AgentStatus, reason string, expectedVersion int64) (*domain.Agent, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	current, err := scanAgent(tx.QueryRow(ctx, `SELECT`+agentColumns+` FROM agents a WHERE a.id=$1 FOR UPDATE`, agentID))
	if err != nil {
		return nil, mapNoRows(err)
	}
	if expectedVersion != 0 && current.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	if current.Status == status && current.StatusReason == reason {
		return current, tx.Commit(ctx)
	}

	const update = `
        UPDATE agents SET status=$1, status_reason=$2, version=version+1, updated_at=NOW()
        WHERE id=$3
        RETURNING version, updated_at`
	if err := tx.QueryRow(ctx, update, status, reason, agentID).Scan(&current.Version, &current.UpdatedAt); err != nil {
		return nil, err
	}
	current.Status = status
	current.StatusReason = reason
	return current, tx.Commit(ctx)
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var a domain.Agent
	if err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.PasswordHash,
		&a.Role,
		&a.Status,
		&a.StatusReason,
		&a.CurrentTicketCount,
		&a.MaxCapacity,
		&a.Skills,
		&a.Stats.AvgResolutionMinutes,
		&a.Stats.SuccessRate,
		&a.Stats.Satisfaction,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
