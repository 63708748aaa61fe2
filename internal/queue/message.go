// Package queue owns the broker session: it decodes incoming jobs, hands them
// to the pipeline and settles each delivery according to the outcome.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"sceneflow-go/internal/config"
	"sceneflow-go/internal/textextract"
	"sceneflow-go/internal/types"
)

// ErrInvalidMessage wraps every reason a delivery body is rejected as poison.
var ErrInvalidMessage = errors.New("invalid message")

// Action is how a delivery is settled with the broker.
type Action int

const (
	Ack Action = iota
	NackRequeue
)

func (a Action) String() string {
	if a == Ack {
		return "ack"
	}
	return "nack-requeue"
}

// Decide maps an outcome to its settlement. Anything that is not known to be
// final is redelivered.
func Decide(o types.Outcome) Action {
	switch o.(type) {
	case types.Success, types.Poison:
		return Ack
	default:
		return NackRequeue
	}
}

// Decode parses a delivery body into a job. FileType is inferred from the
// file name when absent and is always returned lower-cased. supports may be
// nil to skip the format check. On error the returned job carries whatever
// fields could be read, for logging.
func Decode(body []byte, supports func(format string) bool) (types.IncomingJob, error) {
	var job types.IncomingJob
	if err := json.Unmarshal(body, &job); err != nil {
		return types.IncomingJob{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	job.FileName = strings.TrimSpace(job.FileName)
	job.StorageURL = strings.TrimSpace(job.StorageURL)

	switch {
	case job.FileName == "":
		return job, fmt.Errorf("%w: missing FileName", ErrInvalidMessage)
	case job.StorageURL == "":
		return job, fmt.Errorf("%w: missing StorageUrl", ErrInvalidMessage)
	}

	job.FileType = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(job.FileType), "."))
	if job.FileType == "" {
		job.FileType = textextract.FormatFromName(job.FileName)
	}
	if job.FileType == "" {
		return job, fmt.Errorf("%w: cannot determine file type of %q", ErrInvalidMessage, job.FileName)
	}
	if supports != nil && !supports(job.FileType) {
		return job, fmt.Errorf("%w: unsupported file type %q", ErrInvalidMessage, job.FileType)
	}
	return job, nil
}

// URI builds the broker address from configuration.
func URI(cfg config.BrokerConfig) string {
	return amqp.URI{
		Scheme:   "amqp",
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		Vhost:    cfg.VHost,
	}.String()
}

// inputQueueArgs declares the input queue as a quorum queue. Redelivery is
// unbounded unless a delivery limit is configured, in which case the broker
// drops or dead-letters the message once the limit is hit.
func inputQueueArgs(cfg config.BrokerConfig) amqp.Table {
	args := amqp.Table{"x-queue-type": "quorum"}
	if cfg.DeliveryLimit > 0 {
		args["x-delivery-limit"] = int32(cfg.DeliveryLimit)
	}
	if cfg.DeadLetterExchange != "" {
		args["x-dead-letter-exchange"] = cfg.DeadLetterExchange
	}
	return args
}

type declarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
}

func declareInput(ch declarer, cfg config.BrokerConfig) error {
	if _, err := ch.QueueDeclare(cfg.InputQueue, true, false, false, false, inputQueueArgs(cfg)); err != nil {
		return fmt.Errorf("declare %s: %w", cfg.InputQueue, err)
	}
	return nil
}

func declareOutput(ch declarer, cfg config.BrokerConfig) error {
	if _, err := ch.QueueDeclare(cfg.OutputQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", cfg.OutputQueue, err)
	}
	return nil
}
