package worker

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/events"
	"github.com/spec-kit/queue-engine/internal/service"
)

// NotificationWorker owns the outbound channels for statuses and alerts.
// Either channel is optional; with neither configured the worker only logs.
type NotificationWorker struct {
	service *service.NotificationService
	kafka   *KafkaAlertSink
	logger  *zap.Logger
}

// NewNotificationWorker assembles the Redis and Kafka outlets that are configured.
func NewNotificationWorker(dispatcher events.Dispatcher, redisClient *redis.Client, cfg *config.Config, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		sinks     []service.AlertSink
		publisher service.StatusPublisher
	)
	if rp := NewRedisPublisher(redisClient, cfg.Redis, cfg.Monitor.AlertBufferSize); rp != nil {
		publisher = rp
		sinks = append(sinks, rp)
	}
	kafkaSink := NewKafkaAlertSink(cfg.Kafka, logger)
	if kafkaSink != nil {
		sinks = append(sinks, kafkaSink)
	}
	logger.Info("notification outlets configured",
		zap.Bool("redis", publisher != nil),
		zap.Bool("kafka", kafkaSink != nil),
	)
	return &NotificationWorker{
		service: service.NewNotificationService(dispatcher, logger, publisher, sinks...),
		kafka:   kafkaSink,
		logger:  logger,
	}
}

// Start subscribes the outlets to the dispatcher.
func (w *NotificationWorker) Start() {
	if w == nil || w.service == nil {
		return
	}
	w.service.RegisterHandlers()
}

// Stop flushes and closes the Kafka writer.
func (w *NotificationWorker) Stop() error {
	if w == nil {
		return nil
	}
	return w.kafka.Close()
}
