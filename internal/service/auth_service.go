package service

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/queue-engine/internal/auth"
	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/repository"
)

// AuthService authenticates agents.
type AuthService struct {
	agents   repository.AgentRepository
	tokenMgr *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, agents repository.AgentRepository) *AuthService {
	return &AuthService{
		agents:   agents,
		tokenMgr: auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
	}
}

// LoginAgent authenticates an agent and returns a role-bearing token.
func (s *AuthService) LoginAgent(ctx context.Context, email, password string) (*domain.Agent, string, domain.Token, error) {
	agent, err := s.agents.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			auth.SpendComparison(password)
			return nil, "", domain.Token{}, ErrInvalidCredentials
		}
		return nil, "", domain.Token{}, err
	}
	if agent.PasswordHash == "" {
		auth.SpendComparison(password)
		return nil, "", domain.Token{}, ErrInvalidCredentials
	}
	if err := auth.ComparePassword(agent.PasswordHash, password); err != nil {
		return nil, "", domain.Token{}, ErrInvalidCredentials
	}
	token, meta, err := s.tokenMgr.GenerateToken(agent.ID, agent.Role)
	if err != nil {
		return nil, "", domain.Token{}, err
	}
	return agent, token, meta, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
