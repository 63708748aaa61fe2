package queue

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"sceneflow-go/internal/config"
	"sceneflow-go/internal/logger"
	"sceneflow-go/internal/types"
)

// Enqueue publishes jobs to the input queue with publisher confirms and
// returns how many the broker accepted before the first failure.
func Enqueue(ctx context.Context, cfg config.BrokerConfig, jobs []types.IncomingJob, log *logger.Logger) (int, error) {
	conn, err := amqp.DialConfig(URI(cfg), amqp.Config{
		Vhost:      cfg.VHost,
		Heartbeat:  10 * time.Second,
		Properties: amqp.Table{"connection_name": "sceneflow-enqueue"},
	})
	if err != nil {
		return 0, fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return 0, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := declareInput(ch, cfg); err != nil {
		return 0, err
	}
	if err := ch.Confirm(false); err != nil {
		return 0, fmt.Errorf("enable confirms: %w", err)
	}

	confirmer := &confirmingPublisher{ch: ch}
	sent := 0
	for _, job := range jobs {
		jlog := log.WithJob(job)
		if err := publishJSON(ctx, confirmer, cfg, cfg.InputQueue, job.CorrelationID, job); err != nil {
			jlog.WithError(err).Error("enqueue failed")
			return sent, err
		}
		jlog.Debug("job enqueued")
		sent++
	}
	return sent, nil
}

// confirmingPublisher waits for the broker ack of every message it publishes.
type confirmingPublisher struct {
	ch *amqp.Channel
}

func (p *confirmingPublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	dc, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, mandatory, immediate, msg)
	if err != nil {
		return err
	}
	ok, err := dc.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("broker nacked message %s", msg.MessageId)
	}
	return nil
}
