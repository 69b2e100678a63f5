package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/service"
)

func newTestScorer(t *testing.T, handler http.HandlerFunc) *HTTPScorer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPScorer(config.ScorerConfig{
		BaseURL:            srv.URL,
		TimeoutSeconds:     2,
		RetryCount:         0,
		BreakerMaxFailures: 2,
		BreakerOpenSeconds: 60,
	}, zap.NewNop())
}

func TestScoreCandidates(t *testing.T) {
	scorer := newTestScorer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/score", r.URL.Path)
		var req scoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "t-1", req.Ticket.ID)
		require.Len(t, req.Candidates, 2)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(scoreResponse{Candidates: []service.ScoredCandidate{
			{AgentID: "a-1", Confidence: 0.9, Reasons: []string{"billing expert"}},
			{AgentID: "a-2", Confidence: 0.4},
		}})
	})

	got, err := scorer.ScoreCandidates(context.Background(),
		domain.Ticket{ID: "t-1", Skills: []string{"billing"}},
		[]domain.Agent{{ID: "a-1"}, {ID: "a-2"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.9, got[0].Confidence)
	assert.Equal(t, []string{"billing expert"}, got[0].Reasons)
}

func TestBreachRisk(t *testing.T) {
	scorer := newTestScorer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/queues/q-7/risk", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"breach_risk_pct": 82.5, "minutes_to_next_breach": 14}`))
	})

	risk, err := scorer.BreachRisk(context.Background(), "q-7")
	require.NoError(t, err)
	assert.Equal(t, 82.5, risk.Pct)
	require.NotNil(t, risk.MinutesToNextBreach)
	assert.Equal(t, 14, *risk.MinutesToNextBreach)
	assert.Equal(t, service.RiskExternal, risk.Source)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	var calls int32
	scorer := newTestScorer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 4; i++ {
		_, err := scorer.BreachRisk(context.Background(), "q-1")
		assert.Error(t, err)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRiskOutageLeavesScoringClosed(t *testing.T) {
	var riskCalls, scoreCalls int32
	scorer := newTestScorer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/score" {
			atomic.AddInt32(&scoreCalls, 1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"candidates":[{"agent_id":"a-1","confidence":0.7}]}`))
			return
		}
		atomic.AddInt32(&riskCalls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := scorer.BreachRisk(ctx, "q-1")
		assert.Error(t, err)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&riskCalls))
	assert.Equal(t, gobreaker.StateOpen, scorer.riskBreaker.State())

	got, err := scorer.ScoreCandidates(ctx, domain.Ticket{ID: "t-1"}, []domain.Agent{{ID: "a-1"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&scoreCalls))
	assert.Equal(t, gobreaker.StateClosed, scorer.scoreBreaker.State())
}

func TestNilScorerIsDisabled(t *testing.T) {
	scorer := NewHTTPScorer(config.ScorerConfig{}, zap.NewNop())
	assert.Nil(t, scorer)
	_, err := scorer.ScoreCandidates(context.Background(), domain.Ticket{}, nil)
	assert.ErrorIs(t, err, ErrDisabled)
}
