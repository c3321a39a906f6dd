package queue

import (
	"context"

	"github.com/rabbitmq/amqp091-go"

	"github.com/chive/backend/pkg/logger"
)

const retriesHeader = "x-retries"

// Retries reads the retry count a message has accumulated.
func Retries(msg amqp091.Delivery) int {
	switch v := msg.Headers[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Retry republishes msg to the retry queue of queueName with its retry count
// bumped and acks the original. A failed publish requeues the original.
func Retry(ctx context.Context, pub Publisher, msg amqp091.Delivery, queueName string) {
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retriesHeader] = int32(Retries(msg) + 1)

	retryName := queueName + retrySuffix
	err := PublishFIFO(ctx, pub, retryName, amqp091.Publishing{
		ContentType:   msg.ContentType,
		Body:          msg.Body,
		Headers:       headers,
		CorrelationId: msg.CorrelationId,
		ReplyTo:       msg.ReplyTo,
	})
	if err != nil {
		logger.Error("Failed to publish to retry queue", "retry_queue", retryName, "err", err)
		nack(msg)
		return
	}
	ack(msg)
}

// DeadLetter moves msg to the dead-letter queue of queueName.
func DeadLetter(ctx context.Context, pub Publisher, msg amqp091.Delivery, queueName string) {
	dlqName := queueName + dlqSuffix
	logger.Info("Sending message to DLQ", "dlq", dlqName)
	err := PublishFIFO(ctx, pub, dlqName, amqp091.Publishing{
		ContentType:   msg.ContentType,
		Body:          msg.Body,
		Headers:       msg.Headers,
		CorrelationId: msg.CorrelationId,
	})
	if err != nil {
		logger.Error("Failed to publish to DLQ", "dlq", dlqName, "err", err)
		nack(msg)
		return
	}
	ack(msg)
}

func ack(msg amqp091.Delivery) {
	if err := msg.Ack(false); err != nil {
		logger.Error("Failed to ack message", "err", err)
	}
}

func nack(msg amqp091.Delivery) {
	if err := msg.Nack(false, true); err != nil {
		logger.Error("Failed to nack message", "err", err)
	}
}
