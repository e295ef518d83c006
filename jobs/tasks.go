package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeEventDispatch fans a committed ledger event out to subscribers.
	TaskTypeEventDispatch = "event:dispatch"
	// TaskTypeSupplyIntegrity recomputes per-asset supply from the movement log.
	TaskTypeSupplyIntegrity = "supply:integrity"
)

// EventDispatchPayload wraps a committed ledger event for queue transport.
type EventDispatchPayload struct {
	Name       string          `json:"name"`
	Body       json.RawMessage `json:"body"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEventDispatchTask constructs an Asynq task carrying a ledger event.
func NewEventDispatchTask(name string, body any, at time.Time) (*asynq.Task, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(EventDispatchPayload{Name: name, Body: raw, OccurredAt: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeEventDispatch, data, asynq.Queue(QueueDefault)), nil
}

// NewEventDispatchHandler builds the worker-side handler for event tasks.
// Delivery to external consumers is log-based until a webhook sink lands.
func NewEventDispatchHandler(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload EventDispatchPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if logger != nil {
			logger.Info("ledger event dispatched",
				slog.String("event", payload.Name),
				slog.String("body", string(payload.Body)),
				slog.Time("occurred_at", payload.OccurredAt),
			)
		}
		return nil
	}
}

// SupplyIntegrityPayload carries scheduling metadata for integrity scans.
type SupplyIntegrityPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewSupplyIntegrityTask constructs an Asynq task for a supply integrity scan.
func NewSupplyIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SupplyIntegrityPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSupplyIntegrity, body, asynq.Queue(QueueDefault)), nil
}
