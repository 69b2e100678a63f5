package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/service"
)

// ErrDisabled is returned when no scorer URL is configured.
var ErrDisabled = errors.New("scorer not configured")

// HTTPScorer calls the external skill/ML scoring service. Each endpoint has
// its own circuit breaker, so an outage of the risk endpoint leaves candidate
// scoring untouched and the other way round.
type HTTPScorer struct {
	client       *resty.Client
	scoreBreaker *gobreaker.CircuitBreaker
	riskBreaker  *gobreaker.CircuitBreaker
	logger       *zap.Logger
}

type scoreRequest struct {
	Ticket     ticketView      `json:"ticket"`
	Candidates []candidateView `json:"candidates"`
}

type ticketView struct {
	ID        string                `json:"id"`
	QueueID   string                `json:"queue_id"`
	Title     string                `json:"title"`
	Priority  domain.TicketPriority `json:"priority"`
	Skills    []string              `json:"skills"`
	VIPWeight float64               `json:"vip_weight"`
	DueAt     *time.Time            `json:"due_at,omitempty"`
}

type candidateView struct {
	AgentID              string             `json:"agent_id"`
	Status               domain.AgentStatus `json:"status"`
	Skills               []string           `json:"skills"`
	CurrentTicketCount   int                `json:"current_ticket_count"`
	MaxCapacity          int                `json:"max_capacity"`
	AvgResolutionMinutes float64            `json:"avg_resolution_minutes"`
	SuccessRate          float64            `json:"success_rate"`
	Satisfaction         float64            `json:"satisfaction"`
}

type scoreResponse struct {
	Candidates []service.ScoredCandidate `json:"candidates"`
}

type riskResponse struct {
	BreachRiskPct       float64 `json:"breach_risk_pct"`
	MinutesToNextBreach *int    `json:"minutes_to_next_breach"`
}

// NewHTTPScorer builds the client, or returns nil when cfg.BaseURL is empty.
func NewHTTPScorer(cfg config.ScorerConfig, logger *zap.Logger) *HTTPScorer {
	if cfg.BaseURL == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200*time.Millisecond).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})

	return &HTTPScorer{
		client:       client,
		scoreBreaker: newBreaker("scorer.score", cfg, logger),
		riskBreaker:  newBreaker("scorer.risk", cfg, logger),
		logger:       logger,
	}
}

func newBreaker(name string, cfg config.ScorerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	maxFailures := uint32(cfg.BreakerMaxFailures)
	if maxFailures == 0 {
		maxFailures = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     time.Duration(cfg.BreakerOpenSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// ScoreCandidates asks the scorer to rate agents for the ticket.
func (s *HTTPScorer) ScoreCandidates(ctx context.Context, ticket domain.Ticket, agents []domain.Agent) ([]service.ScoredCandidate, error) {
	if s == nil {
		return nil, ErrDisabled
	}
	req := scoreRequest{
		Ticket: ticketView{
			ID:        ticket.ID,
			QueueID:   ticket.QueueID,
			Title:     ticket.Title,
			Priority:  ticket.Priority,
			Skills:    ticket.Skills,
			VIPWeight: ticket.VIPWeight,
			DueAt:     ticket.DueAt,
		},
		Candidates: make([]candidateView, 0, len(agents)),
	}
	for _, a := range agents {
		req.Candidates = append(req.Candidates, candidateView{
			AgentID:              a.ID,
			Status:               a.Status,
			Skills:               a.Skills,
			CurrentTicketCount:   a.CurrentTicketCount,
			MaxCapacity:          a.MaxCapacity,
			AvgResolutionMinutes: a.Stats.AvgResolutionMinutes,
			SuccessRate:          a.Stats.SuccessRate,
			Satisfaction:         a.Stats.Satisfaction,
		})
	}

	out, err := s.scoreBreaker.Execute(func() (interface{}, error) {
		var result scoreResponse
		resp, err := s.client.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&result).
			Post("/v1/score")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("scorer returned %d", resp.StatusCode())
		}
		return result.Candidates, nil
	})
	if err != nil {
		return nil, fmt.Errorf("score candidates: %w", err)
	}
	return out.([]service.ScoredCandidate), nil
}

// BreachRisk fetches the externally computed SLA risk for a queue.
func (s *HTTPScorer) BreachRisk(ctx context.Context, queueID string) (service.BreachRisk, error) {
	if s == nil {
		return service.BreachRisk{}, ErrDisabled
	}
	out, err := s.riskBreaker.Execute(func() (interface{}, error) {
		var result riskResponse
		resp, err := s.client.R().
			SetContext(ctx).
			SetPathParam("queueID", queueID).
			SetResult(&result).
			Get("/v1/queues/{queueID}/risk")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("scorer returned %d", resp.StatusCode())
		}
		return result, nil
	})
	if err != nil {
		return service.BreachRisk{}, fmt.Errorf("breach risk: %w", err)
	}
	risk := out.(riskResponse)
	return service.BreachRisk{
		Pct:                 risk.BreachRiskPct,
		MinutesToNextBreach: risk.MinutesToNextBreach,
		Source:              service.RiskExternal,
	}, nil
}
