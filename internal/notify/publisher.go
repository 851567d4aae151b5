package notify

import (
	"context"
	"fmt"

	"github.com/cosmetica/clinic-booking/pkg/logging"
)

// Publisher enqueues notification requests for the worker.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("notify: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// Enqueue publishes one notification request.
func (p *Publisher) Enqueue(ctx context.Context, req Request) error {
	payload, body, err := encodePayload(req)
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("notify: failed to enqueue notification: %w", err)
	}
	p.logger.Debug("notification enqueued", "job_id", payload.ID, "kind", req.Kind)
	return nil
}
