package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"sceneflow-go/internal/config"
	"sceneflow-go/internal/logger"
	"sceneflow-go/internal/types"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateListening
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	default:
		return "disconnected"
	}
}

// Ready reports whether the consumer holds a live subscription.
func (s State) Ready() bool {
	return s == StateListening || s == StateProcessing
}

// Processor handles one decoded job.
type Processor interface {
	Process(ctx context.Context, job types.IncomingJob) types.Outcome
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

const consumerTag = "sceneflow"

// Consumer is the single owner of the broker connection and channel. Messages
// are handled one at a time on the goroutine that runs Run, so ack, nack and
// publish never race on the channel.
type Consumer struct {
	cfg      config.BrokerConfig
	supports func(format string) bool
	log      *logger.Logger
	state    atomic.Int32
	dial     func(cfg config.BrokerConfig) (*subscription, error)

	// set for the lifetime of one session, touched only by the Run goroutine
	pub publisher
}

// subscription is one live consumer on the input queue.
type subscription struct {
	deliveries <-chan amqp.Delivery
	closed     <-chan *amqp.Error
	pub        publisher
	cancel     func() error
	close      func()
}

// NewConsumer builds a consumer. supports is the extractor whitelist used to
// reject unsupported file types before any work is done.
func NewConsumer(cfg config.BrokerConfig, supports func(format string) bool, log *logger.Logger) *Consumer {
	return &Consumer{cfg: cfg, supports: supports, log: log.With("component", "queue"), dial: dialAMQP}
}

func (c *Consumer) State() State { return State(c.state.Load()) }

func (c *Consumer) setState(s State) { c.state.Store(int32(s)) }

// Run consumes until ctx is cancelled, reconnecting after every lost session
// with a fixed delay. It returns nil on shutdown.
func (c *Consumer) Run(ctx context.Context, proc Processor) error {
	op := func() error {
		err := c.session(ctx, proc)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("session ended")
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.log.WithError(err).WithField("retry_in", wait.String()).Warn("broker session lost")
	}

	bo := backoff.WithContext(backoff.NewConstantBackOff(c.cfg.ReconnectDelay), ctx)
	err := backoff.RetryNotify(op, bo, notify)
	c.setState(StateDisconnected)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func dialAMQP(cfg config.BrokerConfig) (*subscription, error) {
	conn, err := amqp.DialConfig(URI(cfg), amqp.Config{
		Vhost:      cfg.VHost,
		Heartbeat:  10 * time.Second,
		Properties: amqp.Table{"connection_name": "sceneflow-consumer"},
	})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	fail := func(err error) (*subscription, error) {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		return fail(fmt.Errorf("set qos: %w", err))
	}
	if err := declareInput(ch, cfg); err != nil {
		return fail(err)
	}
	if err := declareOutput(ch, cfg); err != nil {
		return fail(err)
	}

	deliveries, err := ch.Consume(cfg.InputQueue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fail(fmt.Errorf("consume %s: %w", cfg.InputQueue, err))
	}

	return &subscription{
		deliveries: deliveries,
		closed:     conn.NotifyClose(make(chan *amqp.Error, 1)),
		pub:        ch,
		cancel:     func() error { return ch.Cancel(consumerTag, false) },
		close: func() {
			ch.Close()
			conn.Close()
		},
	}, nil
}

func (c *Consumer) session(ctx context.Context, proc Processor) error {
	c.setState(StateConnecting)
	defer c.setState(StateDisconnected)

	sub, err := c.dial(c.cfg)
	if err != nil {
		return err
	}
	defer sub.close()

	c.pub = sub.pub
	defer func() { c.pub = nil }()

	c.setState(StateListening)
	c.log.WithField("queue", c.cfg.InputQueue).WithField("prefetch", c.cfg.Prefetch).Info("listening")

	err = c.loop(ctx, proc, sub.deliveries, sub.closed)
	if ctx.Err() != nil {
		// unacked prefetched deliveries go back to the queue when the channel closes
		if err := sub.cancel(); err != nil {
			c.log.WithError(err).Warn("cancel consumer")
		}
		c.log.Info("consumer stopped")
		return nil
	}
	return err
}

// loop handles deliveries until ctx is cancelled or the session breaks.
// A cancelled context wins over a delivery that is already waiting.
func (c *Consumer) loop(ctx context.Context, proc Processor, deliveries <-chan amqp.Delivery, closed <-chan *amqp.Error) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case aerr := <-closed:
			if aerr == nil {
				return errors.New("connection closed")
			}
			return fmt.Errorf("connection closed: %w", aerr)
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if ctx.Err() != nil {
				if err := d.Nack(false, true); err != nil {
					c.log.WithError(err).Warn("requeue delivery")
				}
				return nil
			}
			c.handle(ctx, proc, d)
		}
	}
}

// handle processes one delivery to completion, even if ctx is cancelled
// meanwhile, and settles it.
func (c *Consumer) handle(ctx context.Context, proc Processor, d amqp.Delivery) {
	c.setState(StateProcessing)
	defer c.setState(StateListening)

	log := c.log.With("delivery_tag", d.DeliveryTag).With("redelivered", d.Redelivered)
	action := c.dispatch(context.WithoutCancel(ctx), proc, d, log)

	var err error
	switch action {
	case Ack:
		err = d.Ack(false)
	default:
		err = d.Nack(false, true)
	}
	if err != nil {
		// the broker redelivers anything left unsettled on a dead channel
		log.WithError(err).WithField("action", action.String()).Error("settle delivery")
	}
}

func (c *Consumer) dispatch(ctx context.Context, proc Processor, d amqp.Delivery, log *logger.Logger) (action Action) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).
				WithField("stack", string(debug.Stack())).
				Error("unhandled panic while processing message")
			action = NackRequeue
		}
	}()

	job, err := Decode(d.Body, c.supports)
	if job.CorrelationID == "" {
		job.CorrelationID = d.CorrelationId
	}
	if job.CorrelationID == "" {
		job.CorrelationID = uuid.NewString()
	}
	jlog := log.WithJob(job)
	if err != nil {
		jlog.WithError(err).Error("poison message dropped")
		return Ack
	}

	jlog.Info("message received")
	out := proc.Process(ctx, job)
	switch o := out.(type) {
	case types.Success:
		jlog.WithField("artifact_url", o.ArtifactURL).WithField("scenes", o.SceneCount).Info("message completed")
	case types.Poison:
		jlog.WithError(o.Reason).Error("poison document dropped")
	case types.Transient:
		jlog.WithError(o.Reason).Warn("transient failure, message requeued")
	}
	return Decide(out)
}

// Publish sends the completion event to the output queue. It must be called
// from within Processor.Process, on the consumer's goroutine.
func (c *Consumer) Publish(ctx context.Context, ev types.CompletionEvent) error {
	if c.pub == nil {
		return errors.New("publish: broker not connected")
	}
	return publishJSON(ctx, c.pub, c.cfg, c.cfg.OutputQueue, ev.CorrelationID, ev)
}

func publishJSON(ctx context.Context, pub publisher, cfg config.BrokerConfig, queue, correlationID string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.PublishTimeout)
		defer cancel()
	}
	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: correlationID,
		MessageId:     uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Body:          body,
	}
	if err := pub.PublishWithContext(ctx, cfg.Exchange, queue, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}
