package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/events"
)

type recordingWriter struct {
	messages []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaAlertSinkKeysByQueue(t *testing.T) {
	writer := &recordingWriter{}
	sink := &KafkaAlertSink{writer: writer, logger: zap.NewNop()}
	ticketID := "t-9"
	alert := domain.Alert{
		ID:        "al-1",
		QueueID:   "q-1",
		TicketID:  &ticketID,
		Severity:  domain.SeverityWarning,
		Message:   "ticket t-9 breached its SLA",
		Cycle:     4,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.NoError(t, sink.PublishAlert(context.Background(), events.EventAlertRaised, alert))
	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "q-1", string(msg.Key))

	var decoded KafkaAlertMessage
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, events.EventAlertRaised, decoded.Event)
	assert.Equal(t, "al-1", decoded.AlertID)
	require.NotNil(t, decoded.TicketID)
	assert.Equal(t, "t-9", *decoded.TicketID)
}

func TestNewKafkaAlertSinkDisabledWithoutBrokers(t *testing.T) {
	assert.Nil(t, NewKafkaAlertSink(config.KafkaConfig{AlertTopic: "queue_alerts"}, zap.NewNop()))
	var sink *KafkaAlertSink
	assert.NoError(t, sink.Close())
}

func TestRedisKeys(t *testing.T) {
	assert.Equal(t, "qe:queue:q-1:status", StatusKey("qe", "q-1"))
	assert.Equal(t, "qe:queue:q-1", StatusChannel("qe", "q-1"))
	assert.Equal(t, "qe:alerts:q-1", AlertListKey("qe", "q-1"))
	assert.Equal(t, "qe:events", EventChannel("qe"))
	assert.Nil(t, NewRedisPublisher(nil, config.RedisConfig{}, 5))
}
