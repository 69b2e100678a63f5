package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/queue-engine/internal/domain"
)

type stubScorer struct {
	scores map[string]float64
	err    error
	seen   []string
}

func (s *stubScorer) ScoreCandidates(_ context.Context, _ domain.Ticket, agents []domain.Agent) ([]ScoredCandidate, error) {
	for _, a := range agents {
		s.seen = append(s.seen, a.ID)
	}
	if s.err != nil {
		return nil, s.err
	}
	var out []ScoredCandidate
	for id, c := range s.scores {
		out = append(out, ScoredCandidate{AgentID: id, Confidence: c})
	}
	return out, nil
}

func TestRecommendExcludesFullAgents(t *testing.T) {
	scorer := &stubScorer{scores: map[string]float64{"full": 0.99, "over": 0.95, "ok": 0.5}}
	r := NewAssignmentRecommender(scorer, nil)
	agents := []domain.Agent{
		{ID: "full", CurrentTicketCount: 10, MaxCapacity: 10},
		{ID: "over", CurrentTicketCount: 12, MaxCapacity: 10},
		{ID: "ok", CurrentTicketCount: 3, MaxCapacity: 10},
	}

	got := r.Recommend(context.Background(), domain.Ticket{ID: "t-1"}, agents)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].AgentID)
	assert.Equal(t, []string{"ok"}, scorer.seen)
}

func TestRecommendOrdering(t *testing.T) {
	scorer := &stubScorer{scores: map[string]float64{"a": 0.7, "b": 0.7, "c": 0.9, "d": 0.7}}
	r := NewAssignmentRecommender(scorer, nil)
	agents := []domain.Agent{
		{ID: "d", CurrentTicketCount: 2, MaxCapacity: 10},
		{ID: "a", CurrentTicketCount: 5, MaxCapacity: 10},
		{ID: "b", CurrentTicketCount: 2, MaxCapacity: 10},
		{ID: "c", CurrentTicketCount: 9, MaxCapacity: 10},
	}

	got := r.Recommend(context.Background(), domain.Ticket{ID: "t-1"}, agents)
	var ids []string
	for _, rec := range got {
		ids = append(ids, rec.AgentID)
	}
	assert.Equal(t, []string{"c", "b", "d", "a"}, ids)
	assert.Equal(t, ImpactHigh, got[0].Impact)
	assert.Equal(t, ImpactMedium, got[1].Impact)
}

func TestImpactFor(t *testing.T) {
	assert.Equal(t, ImpactHigh, ImpactFor(0.8))
	assert.Equal(t, ImpactMedium, ImpactFor(0.79))
	assert.Equal(t, ImpactMedium, ImpactFor(0.6))
	assert.Equal(t, ImpactLow, ImpactFor(0.59))
}

func TestRecommendEmptyWhenNoEligible(t *testing.T) {
	r := NewAssignmentRecommender(&stubScorer{}, nil)
	got := r.Recommend(context.Background(), domain.Ticket{}, []domain.Agent{{ID: "x", CurrentTicketCount: 1, MaxCapacity: 1}})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRecommendDegradesWhenScorerFails(t *testing.T) {
	r := NewAssignmentRecommender(&stubScorer{err: errors.New("timeout")}, nil)
	agents := []domain.Agent{
		{ID: "busy", CurrentTicketCount: 8, MaxCapacity: 10},
		{ID: "idle", CurrentTicketCount: 1, MaxCapacity: 10},
	}
	got := r.Recommend(context.Background(), domain.Ticket{}, agents)
	require.Len(t, got, 2)
	assert.Equal(t, "idle", got[0].AgentID)
	assert.Equal(t, 0.0, got[0].Confidence)
	assert.Contains(t, got[0].Reasons, "scorer unavailable; ranked by load")
}

func TestRecommendClampsAndExplains(t *testing.T) {
	scorer := &stubScorer{scores: map[string]float64{"a-1": 1.7}}
	r := NewAssignmentRecommender(scorer, nil)
	ticket := domain.Ticket{ID: "t-1", Skills: []string{"Billing", "refunds"}, VIPWeight: 2}
	agents := []domain.Agent{{
		ID: "a-1", Status: domain.AgentStatusAway, CurrentTicketCount: 2, MaxCapacity: 8,
		Skills: []string{"billing"}, Stats: domain.PerformanceStats{Satisfaction: 4.8},
	}}

	got := r.Recommend(context.Background(), ticket, agents)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Confidence)
	assert.Equal(t, []string{
		"load 2/8",
		"skills matched: Billing",
		"agent is away",
		"satisfaction 4.8 for VIP ticket",
	}, got[0].Reasons)
}
