package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/domain"
)

// ScoredCandidate is one agent as rated by the external scorer.
type ScoredCandidate struct {
	AgentID    string   `json:"agent_id"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Scorer rates agents for a ticket. Implementations may be remote and
// non-deterministic; the recommender only ranks what they return.
type Scorer interface {
	ScoreCandidates(ctx context.Context, ticket domain.Ticket, agents []domain.Agent) ([]ScoredCandidate, error)
}

// Impact buckets confidence.
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// ImpactFor maps a confidence in [0,1] to an impact bucket.
func ImpactFor(confidence float64) Impact {
	switch {
	case confidence >= 0.8:
		return ImpactHigh
	case confidence >= 0.6:
		return ImpactMedium
	default:
		return ImpactLow
	}
}

// Recommendation suggests assigning the ticket to an agent.
type Recommendation struct {
	AgentID     string             `json:"agent_id"`
	AgentName   string             `json:"agent_name"`
	Status      domain.AgentStatus `json:"status"`
	Confidence  float64            `json:"confidence"`
	Impact      Impact             `json:"impact"`
	CurrentLoad int                `json:"current_load"`
	MaxCapacity int                `json:"max_capacity"`
	Reasons     []string           `json:"reasons"`
}

// AssignmentRecommender filters, ranks and explains scored candidates.
type AssignmentRecommender struct {
	scorer Scorer
	logger *zap.Logger
}

// NewAssignmentRecommender creates the recommender. A nil scorer ranks by load alone.
func NewAssignmentRecommender(scorer Scorer, logger *zap.Logger) *AssignmentRecommender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentRecommender{scorer: scorer, logger: logger}
}

// Recommend returns eligible agents ordered by confidence, then lower load,
// then agent id. Agents at or over capacity are never returned. A failing
// scorer degrades every confidence to 0 instead of failing the request.
func (r *AssignmentRecommender) Recommend(ctx context.Context, ticket domain.Ticket, candidates []domain.Agent) []Recommendation {
	eligible := make([]domain.Agent, 0, len(candidates))
	for _, a := range candidates {
		if a.HasCapacity() {
			eligible = append(eligible, a)
		}
	}
	if len(eligible) == 0 {
		return []Recommendation{}
	}

	scores := map[string]ScoredCandidate{}
	scorerDown := false
	if r.scorer == nil {
		scorerDown = true
	} else {
		scored, err := r.scorer.ScoreCandidates(ctx, ticket, eligible)
		if err != nil {
			r.logger.Warn("assignment scorer unavailable", zap.String("ticket_id", ticket.ID), zap.Error(err))
			scorerDown = true
		}
		for _, s := range scored {
			scores[s.AgentID] = s
		}
	}

	out := make([]Recommendation, 0, len(eligible))
	for _, a := range eligible {
		score := scores[a.ID]
		confidence := clampConfidence(score.Confidence)
		reasons := append([]string{}, score.Reasons...)
		if scorerDown {
			reasons = append(reasons, "scorer unavailable; ranked by load")
		}
		reasons = append(reasons, composeReasons(ticket, a)...)
		out = append(out, Recommendation{
			AgentID:     a.ID,
			AgentName:   a.Name,
			Status:      a.Status,
			Confidence:  confidence,
			Impact:      ImpactFor(confidence),
			CurrentLoad: a.CurrentTicketCount,
			MaxCapacity: a.MaxCapacity,
			Reasons:     reasons,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		if out[i].CurrentLoad != out[j].CurrentLoad {
			return out[i].CurrentLoad < out[j].CurrentLoad
		}
		return out[i].AgentID < out[j].AgentID
	})
	return out
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func composeReasons(ticket domain.Ticket, agent domain.Agent) []string {
	reasons := []string{fmt.Sprintf("load %d/%d", agent.CurrentTicketCount, agent.MaxCapacity)}

	var matched []string
	for _, skill := range ticket.Skills {
		if agent.HasSkill(skill) {
			matched = append(matched, skill)
		}
	}
	if len(matched) > 0 {
		reasons = append(reasons, "skills matched: "+strings.Join(matched, ", "))
	}
	if agent.Status != domain.AgentStatusAvailable {
		reasons = append(reasons, "agent is "+string(agent.Status))
	}
	if ticket.IsVIP() && agent.Stats.Satisfaction >= 4.5 {
		reasons = append(reasons, fmt.Sprintf("satisfaction %.1f for VIP ticket", agent.Stats.Satisfaction))
	}
	return reasons
}
