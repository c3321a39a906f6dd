package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rabbitmq/amqp091-go"

	"github.com/chive/backend/pkg/logger"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

// Dispatcher publishes jobs and waits for the worker's reply on a private
// reply queue. Replies are matched by correlation id.
type Dispatcher struct {
	pub        Publisher
	queue      string
	replyQueue string

	mu      sync.Mutex
	pending map[string]chan PipelineResult
	closed  bool
}

// NewDispatcher declares an exclusive reply queue on ch and starts consuming
// it. The dispatcher stops when ch closes.
func NewDispatcher(ch *amqp091.Channel, queueName string) (*Dispatcher, error) {
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare reply queue: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume reply queue: %w", err)
	}

	d := newDispatcher(ch, queueName, q.Name)
	go d.listen(deliveries)
	return d, nil
}

func newDispatcher(pub Publisher, queueName, replyQueue string) *Dispatcher {
	return &Dispatcher{
		pub:        pub,
		queue:      queueName,
		replyQueue: replyQueue,
		pending:    make(map[string]chan PipelineResult),
	}
}

// Dispatch publishes job and blocks until its result arrives or ctx ends.
func (d *Dispatcher) Dispatch(ctx context.Context, job PipelineJob) (PipelineResult, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return PipelineResult{}, fmt.Errorf("encode job: %w", err)
	}
	corrID, err := gonanoid.New()
	if err != nil {
		return PipelineResult{}, err
	}

	reply := make(chan PipelineResult, 1)
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return PipelineResult{}, ErrDispatcherClosed
	}
	d.pending[corrID] = reply
	d.mu.Unlock()
	defer d.forget(corrID)

	err = PublishFIFO(ctx, d.pub, d.queue, amqp091.Publishing{
		Body:          body,
		CorrelationId: corrID,
		ReplyTo:       d.replyQueue,
	})
	if err != nil {
		return PipelineResult{}, fmt.Errorf("publish job %s: %w", job.JobID, err)
	}
	logger.Debug("Dispatched pipeline job", "job", job.JobID, "project", job.ProjectID)

	select {
	case res, ok := <-reply:
		if !ok {
			return PipelineResult{}, ErrDispatcherClosed
		}
		return res, nil
	case <-ctx.Done():
		return PipelineResult{}, ctx.Err()
	}
}

func (d *Dispatcher) forget(corrID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, corrID)
}

func (d *Dispatcher) listen(deliveries <-chan amqp091.Delivery) {
	for msg := range deliveries {
		d.deliver(msg)
	}
	d.close()
}

func (d *Dispatcher) deliver(msg amqp091.Delivery) {
	var res PipelineResult
	if err := json.Unmarshal(msg.Body, &res); err != nil {
		logger.Warn("Dropping undecodable pipeline reply", "correlation_id", msg.CorrelationId, "err", err)
		return
	}

	d.mu.Lock()
	reply, ok := d.pending[msg.CorrelationId]
	delete(d.pending, msg.CorrelationId)
	d.mu.Unlock()
	if !ok {
		logger.Debug("Dropping late pipeline reply", "job", res.JobID)
		return
	}
	reply <- res
}

func (d *Dispatcher) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for id, reply := range d.pending {
		close(reply)
		delete(d.pending, id)
	}
	logger.Warn("Pipeline reply queue closed")
}
