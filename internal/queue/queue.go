// Package queue wires the RabbitMQ topology and the worker-side message
// processors. Two work queues exist: sync_queue carries connector sync
// requests, ingest_queue carries one fetched object each. Every queue
// has a retry companion that dead-letters messages back after a delay
// and a _dlq that keeps what ten retries could not process.
package queue

import (
	"fmt"
	"time"

	"github.com/ctxeco/backend/internal/util"
	"github.com/ctxeco/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// SyncQueue carries one connector sync request per message.
	SyncQueue = "sync_queue"
	// IngestQueue carries one stored object per message.
	IngestQueue = "ingest_queue"

	retrySuffix = "_retry"
	dlqSuffix   = "_dlq"

	// retryDelayMs is how long a failed message parks in the retry
	// queue before it dead-letters back onto the work queue.
	retryDelayMs = 10000

	// maxRetries is how often a message may fail before it lands in
	// the dead letter queue for inspection.
	maxRetries = 10

	// publishRetries bounds immediate re-attempts of a publish on a
	// flaky channel.
	publishRetries = 3
)

// Queues lists the work queues a worker consumes, in dispatch order.
func Queues() []string {
	return []string{SyncQueue, IngestQueue}
}

// Init connects to RabbitMQ using the environment configuration. The
// process cannot run without the broker, so failures are fatal.
func Init() *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnv("RABBITMQ_PORT")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// Setup declares every work queue with its retry and dead letter
// companions. Safe to run from both server and worker; declarations are
// idempotent.
func Setup(ch *amqp091.Channel) error {
	for _, name := range Queues() {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}

		_, err = ch.QueueDeclare(
			name+dlqSuffix,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name+dlqSuffix, err)
		}

		_, err = ch.QueueDeclare(
			name+retrySuffix,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelayMs),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name+retrySuffix, err)
		}
	}

	return nil
}

// Publish puts one persistent message onto the named queue.
func Publish(ch *amqp091.Channel, queueName string, data []byte) error {
	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return util.RetryErr(publishRetries, func() error {
		return ch.Publish(
			"",
			q.Name,
			false,
			false,
			publishing,
		)
	})
}
