package mqtt

import (
	"context"
	"encoding/json"

	"github.com/Demr1on/batmap-app/internal/analysis/jobqueue"
	"github.com/Demr1on/batmap-app/internal/errors"
	"github.com/Demr1on/batmap-app/internal/logger"
)

// DefaultBacklog is the number of finished jobs buffered while the broker
// is slow or unreachable.
const DefaultBacklog = 256

// Publisher forwards terminal job snapshots to the broker. Hook is called
// from the scheduler's consumer goroutine and never blocks it; Run does the
// network work.
type Publisher struct {
	client  Client
	config  Config
	pending chan jobqueue.Snapshot
	log     logger.Logger
}

// NewPublisher creates a publisher sending to config.Topic through client.
func NewPublisher(client Client, config Config, backlog int) *Publisher {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Publisher{
		client:  client,
		config:  config,
		pending: make(chan jobqueue.Snapshot, backlog),
		log:     GetLogger(),
	}
}

// Hook enqueues snap for publishing. When the backlog is full the snapshot
// is dropped; the job itself is unaffected.
func (p *Publisher) Hook(snap jobqueue.Snapshot) {
	select {
	case p.pending <- snap:
	default:
		p.log.Warn("mqtt backlog full, dropping job result",
			logger.String("job_id", snap.ID),
			logger.String("status", snap.Status.String()))
	}
}

// Run connects to the broker and publishes queued snapshots until ctx is
// done. It disconnects before returning.
func (p *Publisher) Run(ctx context.Context) error {
	if err := ConnectWithBackoff(ctx, p.client, p.config); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer p.client.Disconnect()

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-p.pending:
			if err := p.PublishSnapshot(ctx, snap); err != nil {
				p.log.Warn("failed to publish job result",
					logger.String("job_id", snap.ID),
					logger.Error(err))
			}
		}
	}
}

// PublishSnapshot publishes one snapshot as a ResultMessage.
func (p *Publisher) PublishSnapshot(ctx context.Context, snap jobqueue.Snapshot) error {
	payload, err := json.Marshal(NewResultMessage(snap))
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("job_id", snap.ID).
			Build()
	}
	if err := p.client.Publish(ctx, p.config.Topic, payload); err != nil {
		return err
	}
	p.log.Debug("published job result",
		logger.String("job_id", snap.ID),
		logger.String("topic", p.config.Topic),
		logger.Int("size_bytes", len(payload)))
	return nil
}
