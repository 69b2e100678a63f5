package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/queue-engine/internal/persistence"
)

const readinessTimeout = 2 * time.Second

// WatchLister reports the queues the monitor refreshes on a schedule.
type WatchLister interface {
	Watched() []string
}

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	service  string
	version  string
	postgres *persistence.Postgres
	redis    *persistence.Redis
	monitor  WatchLister
}

// NewHealthHandler builds the handler. Nil stores are reported as disabled
// and never fail readiness; monitor may be nil.
func NewHealthHandler(service, version string, postgres *persistence.Postgres, redis *persistence.Redis, monitor WatchLister) *HealthHandler {
	return &HealthHandler{service: service, version: version, postgres: postgres, redis: redis, monitor: monitor}
}

// Live answers as long as the process serves HTTP.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.service,
		"version": h.version,
	})
}

// Ready pings postgres and redis in parallel and reports the monitor's
// scheduled queues alongside.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	pgState, redisState := "disabled", "disabled"
	var g errgroup.Group
	if h.postgres.PoolHandle() != nil {
		g.Go(func() error {
			pgState = pingState(h.postgres.Ping(ctx))
			return nil
		})
	}
	if h.redis.Handle() != nil {
		g.Go(func() error {
			redisState = pingState(h.redis.Ping(ctx))
			return nil
		})
	}
	_ = g.Wait()

	deps := fiber.Map{"postgres": pgState, "redis": redisState}
	watched := []string{}
	if h.monitor != nil {
		watched = append(watched, h.monitor.Watched()...)
	}

	if isDown(pgState) || isDown(redisState) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "a backing store is unreachable",
				"details": deps,
			},
		})
	}
	return c.JSON(fiber.Map{
		"status":         "ready",
		"dependencies":   deps,
		"watched_queues": watched,
	})
}

func pingState(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}

func isDown(state string) bool {
	return state != "ok" && state != "disabled"
}
