package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/queue-engine/internal/auth"
	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/repository"
)

func TestLoginAgent(t *testing.T) {
	store := repository.NewMemoryStore()
	hash, err := auth.HashPassword("s3cret!", 4)
	require.NoError(t, err)
	require.NoError(t, store.PutAgent(domain.Agent{
		ID: "a-1", Email: "ada@example.com", PasswordHash: hash, Role: domain.RoleTeamLead,
		Status: domain.AgentStatusAvailable, MaxCapacity: 10,
	}))
	require.NoError(t, store.PutAgent(domain.Agent{ID: "a-2", Email: "nopass@example.com", Status: domain.AgentStatusAvailable, MaxCapacity: 10}))
	svc := NewAuthService(config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5}, store.Agents())
	ctx := context.Background()

	agent, token, meta, err := svc.LoginAgent(ctx, "  ADA@example.com ", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, "a-1", agent.ID)
	assert.NotEmpty(t, token)
	assert.True(t, meta.ExpiresAt.After(meta.IssuedAt))

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "a-1", claims.SubjectID)
	assert.Equal(t, domain.RoleTeamLead, claims.Role)

	_, _, _, err = svc.LoginAgent(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, _, err = svc.LoginAgent(ctx, "ghost@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, _, err = svc.LoginAgent(ctx, "nopass@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
