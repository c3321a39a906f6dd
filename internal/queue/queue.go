package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/chive/backend/internal/util"
	"github.com/chive/backend/pkg/logger"
)

const (
	PipelineQueue = "pipeline_queue"

	retrySuffix = "_retry"
	dlqSuffix   = "_dlq"
	retryDelay  = 10 * time.Second
)

// Publisher is the publishing half of an *amqp091.Channel.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

func Init() *amqp091.Connection {
	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnvString("RABBITMQ_USER", "guest"),
		util.GetEnvString("RABBITMQ_PASSWORD", "guest"),
		util.GetEnvString("RABBITMQ_HOST", "localhost"),
		util.GetEnvString("RABBITMQ_PORT", "5672"),
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupQueues declares each work queue with its dead-letter queue and a retry
// queue that hands messages back to the work queue after retryDelay.
func SetupQueues(ch *amqp091.Channel, queueNames ...string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}

		dlqName := name + dlqSuffix
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", dlqName, err)
		}

		retryName := name + retrySuffix
		_, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelay.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", retryName, err)
		}
	}

	return nil
}

func PublishFIFO(ctx context.Context, pub Publisher, queueName string, msg amqp091.Publishing) error {
	if msg.ContentType == "" {
		msg.ContentType = "application/json"
	}
	msg.DeliveryMode = amqp091.Persistent
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	return pub.PublishWithContext(ctx, "", queueName, false, false, msg)
}
