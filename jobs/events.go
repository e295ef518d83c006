package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tokenvault/tokenvault/internal/observability"
	"github.com/tokenvault/tokenvault/internal/token"
)

// EventPublisher enqueues committed ledger events for asynchronous
// fan-out and counts them. It satisfies token.IntegrationHandler.
type EventPublisher struct {
	client  *Client
	metrics *observability.Metrics
	clock   func() time.Time
}

// NewEventPublisher wires a queue client into the ledger event path.
// Metrics may be nil.
func NewEventPublisher(client *Client, metrics *observability.Metrics) *EventPublisher {
	return &EventPublisher{
		client:  client,
		metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (p *EventPublisher) publish(ctx context.Context, name string, body any) error {
	if p == nil {
		return nil
	}
	p.metrics.CountLedgerOp(name)
	if p.client == nil {
		return nil
	}
	task, err := NewEventDispatchTask(name, body, p.clock())
	if err != nil {
		return err
	}
	_, err = p.client.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// HandleMinted enqueues a Minted event.
func (p *EventPublisher) HandleMinted(ctx context.Context, evt token.MintedEvent) error {
	return p.publish(ctx, token.EventMinted, evt)
}

// HandleBurned enqueues a Burned event.
func (p *EventPublisher) HandleBurned(ctx context.Context, evt token.BurnedEvent) error {
	return p.publish(ctx, token.EventBurned, evt)
}

// HandleAdminTransferred enqueues an AdminTransferred event.
func (p *EventPublisher) HandleAdminTransferred(ctx context.Context, evt token.AdminTransferredEvent) error {
	return p.publish(ctx, token.EventAdminTransferred, evt)
}

// HandleMintBatched enqueues a MintBatched event.
func (p *EventPublisher) HandleMintBatched(ctx context.Context, evt token.MintBatchedEvent) error {
	return p.publish(ctx, token.EventMintBatched, evt)
}

// HandleBurnBatched enqueues a BurnBatched event.
func (p *EventPublisher) HandleBurnBatched(ctx context.Context, evt token.BurnBatchedEvent) error {
	return p.publish(ctx, token.EventBurnBatched, evt)
}
