package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/queue-engine/internal/api/http/handlers"
	"github.com/spec-kit/queue-engine/internal/auth"
	"github.com/spec-kit/queue-engine/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Queues         *handlers.QueuesHandler
	Agents         *handlers.AgentsHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
	// Gatherer serves /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	app.Post("/auth/login", cfg.Auth.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole())
	protected.Get("/auth/me", cfg.Auth.Me)

	leads := auth.RequireRole(domain.RoleTeamLead, domain.RoleAdmin)
	queues := protected.Group("/queues")
	queues.Get("/", cfg.Queues.ListQueues)
	queues.Get("/:id/status", cfg.Queues.GetStatus)
	queues.Post("/:id/refresh", cfg.Queues.Refresh)
	queues.Post("/:id/watch", leads, cfg.Queues.Watch)
	queues.Delete("/:id/watch", leads, cfg.Queues.Unwatch)
	queues.Put("/:id/interval", cfg.Queues.SetInterval)
	queues.Get("/:id/stream", cfg.Queues.Stream)
	queues.Get("/:id/alerts", cfg.Queues.ListAlerts)
	queues.Delete("/:id/alerts/:alertId", cfg.Queues.DismissAlert)
	queues.Put("/:id/agents/:agentId/availability", cfg.Agents.SetAvailability)
	protected.Get("/alerts", cfg.Queues.AllAlerts)

	tickets := protected.Group("/tickets")
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/transitions", cfg.Tickets.ListTransitions)
	tickets.Post("/:id/status", cfg.Tickets.ChangeStatus)
	tickets.Get("/:id/sla", cfg.Tickets.GetSLA)
	tickets.Get("/:id/activity", cfg.Tickets.ListActivity)
	tickets.Get("/:id/recommendations", cfg.Tickets.Recommendations)
}
