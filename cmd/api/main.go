package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/queue-engine/internal/api/http"
	"github.com/spec-kit/queue-engine/internal/api/http/handlers"
	"github.com/spec-kit/queue-engine/internal/auth"
	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/events"
	"github.com/spec-kit/queue-engine/internal/observability"
	"github.com/spec-kit/queue-engine/internal/persistence"
	"github.com/spec-kit/queue-engine/internal/repository"
	"github.com/spec-kit/queue-engine/internal/scoring"
	"github.com/spec-kit/queue-engine/internal/service"
	"github.com/spec-kit/queue-engine/internal/worker"
)

type repositories struct {
	queues   repository.QueueRepository
	agents   repository.AgentRepository
	tickets  repository.TicketRepository
	activity repository.ActivityRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var repos repositories
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, persistence.DefaultMigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = repositories{
			queues:   repository.NewQueueRepository(pool),
			agents:   repository.NewAgentRepository(pool),
			tickets:  repository.NewTicketRepository(pool),
			activity: repository.NewActivityRepository(pool),
		}
	} else {
		store := repository.NewMemoryStore()
		if err := seedMemoryStore(store, cfg.Auth, logger); err != nil {
			logger.Fatal("failed to seed memory store", zap.Error(err))
		}
		repos = repositories{queues: store.Queues(), agents: store.Agents(), tickets: store.Tickets(), activity: store.Activity()}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	dispatcher := events.NewInMemoryDispatcher(logger)

	notifier := worker.NewNotificationWorker(dispatcher, redis.Handle(), cfg, logger.Named("notify"))
	notifier.Start()
	defer func() {
		if err := notifier.Stop(); err != nil {
			logger.Warn("failed to close notification outlets", zap.Error(err))
		}
	}()

	var scorer service.Scorer
	var risk service.RiskProvider
	if httpScorer := scoring.NewHTTPScorer(cfg.Scorer, logger); httpScorer != nil {
		scorer = httpScorer
		risk = httpScorer
	}

	alerts := service.NewAlertEngine(service.AlertEngineDependencies{
		Config:     cfg.Monitor,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger.Named("alerts"),
	})
	monitor := service.NewQueueMonitor(service.MonitorDependencies{
		Config:     cfg.Monitor,
		QueueRepo:  repos.queues,
		AgentRepo:  repos.agents,
		TicketRepo: repos.tickets,
		Risk:       risk,
		Alerts:     alerts,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger.Named("monitor"),
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		Config:       cfg.Monitor,
		TicketRepo:   repos.tickets,
		QueueRepo:    repos.queues,
		ActivityRepo: repos.activity,
		Alerts:       alerts,
		Monitor:      monitor,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  repos.tickets,
		AgentRepo:   repos.agents,
		Recommender: service.NewAssignmentRecommender(scorer, logger),
	})
	availabilityService := service.NewAvailabilityService(service.AvailabilityDependencies{
		QueueRepo:  repos.queues,
		AgentRepo:  repos.agents,
		Monitor:    monitor,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	authService := service.NewAuthService(cfg.Auth, repos.agents)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.agents)

	watchQueues(ctx, monitor, cfg.Monitor.WatchQueueIDs, logger)
	monitor.Start(ctx)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, monitor),
		Auth:           handlers.NewAuthHandler(authService),
		Queues:         handlers.NewQueuesHandler(monitor, logger),
		Agents:         handlers.NewAgentsHandler(availabilityService),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignmentService),
		AuthMiddleware: authMiddleware,
		Gatherer:       prometheus.DefaultGatherer,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	cancel()
	monitor.Stop(shutdownCtx)
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

// watchQueues schedules the configured queues, or every active queue when
// none are configured, and runs a first cycle for each.
func watchQueues(ctx context.Context, monitor *service.QueueMonitor, ids []string, logger *zap.Logger) {
	if len(ids) == 0 {
		queues, err := monitor.ActiveQueues(ctx)
		if err != nil {
			logger.Error("list active queues", zap.Error(err))
			return
		}
		for _, q := range queues {
			ids = append(ids, q.ID)
		}
	}
	for _, id := range ids {
		if err := monitor.WatchQueue(ctx, id); err != nil {
			logger.Warn("watch queue", zap.String("queue_id", id), zap.Error(err))
			continue
		}
		if _, err := monitor.RefreshNow(ctx, id); err != nil {
			logger.Warn("initial refresh", zap.String("queue_id", id), zap.Error(err))
		}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
