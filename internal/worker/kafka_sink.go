package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/events"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaAlertSink writes alerts to a Kafka topic keyed by queue id, so one
// queue's alerts stay ordered within a partition.
type KafkaAlertSink struct {
	writer messageWriter
	logger *zap.Logger
}

// KafkaAlertMessage is the record value written to the topic.
type KafkaAlertMessage struct {
	Event     events.EventType     `json:"event"`
	AlertID   string               `json:"alert_id"`
	QueueID   string               `json:"queue_id"`
	TicketID  *string              `json:"ticket_id,omitempty"`
	Severity  domain.AlertSeverity `json:"severity"`
	Message   string               `json:"message"`
	Cycle     uint64               `json:"cycle"`
	CreatedAt time.Time            `json:"created_at"`
}

// NewKafkaAlertSink builds the sink, or returns nil when no brokers are configured.
func NewKafkaAlertSink(cfg config.KafkaConfig, logger *zap.Logger) *KafkaAlertSink {
	if len(cfg.Brokers) == 0 {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AlertTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("kafka alert write failed", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
	return &KafkaAlertSink{writer: writer, logger: logger}
}

// PublishAlert writes the alert record.
func (s *KafkaAlertSink) PublishAlert(ctx context.Context, eventType events.EventType, alert domain.Alert) error {
	value, err := json.Marshal(KafkaAlertMessage{
		Event:     eventType,
		AlertID:   alert.ID,
		QueueID:   alert.QueueID,
		TicketID:  alert.TicketID,
		Severity:  alert.Severity,
		Message:   alert.Message,
		Cycle:     alert.Cycle,
		CreatedAt: alert.CreatedAt,
	})
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(alert.QueueID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(eventType)},
			{Key: "severity", Value: []byte(alert.Severity)},
		},
	})
}

// Close flushes pending writes.
func (s *KafkaAlertSink) Close() error {
	if s == nil {
		return nil
	}
	return s.writer.Close()
}
