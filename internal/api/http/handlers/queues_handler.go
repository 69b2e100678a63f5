package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/api/dto"
	"github.com/spec-kit/queue-engine/internal/service"
	apperrors "github.com/spec-kit/queue-engine/pkg/util"
)

const streamHeartbeat = 15 * time.Second

// QueuesHandler exposes queue status, monitoring controls and alerts.
type QueuesHandler struct {
	monitor *service.QueueMonitor
	logger  *zap.Logger
}

// NewQueuesHandler constructs handler.
func NewQueuesHandler(monitor *service.QueueMonitor, logger *zap.Logger) *QueuesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueuesHandler{monitor: monitor, logger: logger}
}

// ListQueues GET /queues.
func (h *QueuesHandler) ListQueues(c *fiber.Ctx) error {
	queues, err := h.monitor.ActiveQueues(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]fiber.Map, 0, len(queues))
	for _, q := range queues {
		item := fiber.Map{
			"id":                 q.ID,
			"name":               q.Name,
			"type":               q.Type,
			"sla_target_minutes": q.SLATargetMinutes,
			"agent_count":        len(q.AgentIDs),
		}
		if interval, watched := h.monitor.Interval(q.ID); watched {
			item["watched"] = true
			item["interval_seconds"] = int(interval / time.Second)
		} else {
			item["watched"] = false
		}
		items = append(items, item)
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetStatus GET /queues/:id/status. Serves the last published status, running
// a cycle first when the queue has none yet.
func (h *QueuesHandler) GetStatus(c *fiber.Ctx) error {
	queueID := c.Params("id")
	if status, ok := h.monitor.Latest(queueID); ok {
		return c.JSON(fiber.Map{"data": status})
	}
	status, err := h.monitor.RefreshNow(c.UserContext(), queueID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": status})
}

// Refresh POST /queues/:id/refresh.
func (h *QueuesHandler) Refresh(c *fiber.Ctx) error {
	status, err := h.monitor.RefreshNow(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": status})
}

// Watch POST /queues/:id/watch.
func (h *QueuesHandler) Watch(c *fiber.Ctx) error {
	queueID := c.Params("id")
	if err := h.monitor.WatchQueue(c.UserContext(), queueID); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": h.watchState(queueID)})
}

// Unwatch DELETE /queues/:id/watch.
func (h *QueuesHandler) Unwatch(c *fiber.Ctx) error {
	queueID := c.Params("id")
	if err := h.monitor.Unwatch(queueID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.watchState(queueID)})
}

// SetInterval PUT /queues/:id/interval.
func (h *QueuesHandler) SetInterval(c *fiber.Ctx) error {
	var req dto.SetIntervalRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	queueID := c.Params("id")
	if err := h.monitor.SetInterval(queueID, req.Seconds); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.watchState(queueID)})
}

// ListAlerts GET /queues/:id/alerts.
func (h *QueuesHandler) ListAlerts(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.monitor.Alerts().List(c.Params("id"))})
}

// DismissAlert DELETE /queues/:id/alerts/:alertId.
func (h *QueuesHandler) DismissAlert(c *fiber.Ctx) error {
	if err := h.monitor.Alerts().Dismiss(c.UserContext(), c.Params("id"), c.Params("alertId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AllAlerts GET /alerts.
func (h *QueuesHandler) AllAlerts(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.monitor.Alerts().All()})
}

// Stream GET /queues/:id/stream sends every published status as a
// server-sent event until the client goes away.
func (h *QueuesHandler) Stream(c *fiber.Ctx) error {
	queueID := c.Params("id")
	updates, cancel, err := h.monitor.SubscribeQueue(c.UserContext(), queueID)
	if err != nil {
		return err
	}
	done := c.Context().Done()
	logger := h.logger.With(zap.String("queue_id", queueID))

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()
		for {
			select {
			case <-done:
				return
			case status, ok := <-updates:
				if !ok {
					return
				}
				if err := writeStatusEvent(w, status); err != nil {
					logger.Debug("stream closed", zap.Error(err))
					return
				}
			case <-heartbeat.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					logger.Debug("stream closed", zap.Error(err))
					return
				}
			}
		}
	})
	return nil
}

func writeStatusEvent(w *bufio.Writer, status service.QueueStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: status\ndata: %s\n\n", status.Cycle, payload); err != nil {
		return err
	}
	return w.Flush()
}

func (h *QueuesHandler) watchState(queueID string) dto.WatchResponse {
	interval, watched := h.monitor.Interval(queueID)
	return dto.WatchResponse{
		QueueID:         queueID,
		Watched:         watched,
		IntervalSeconds: int(interval / time.Second),
	}
}
