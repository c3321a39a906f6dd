package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/chive/backend/internal/cv"
	"github.com/chive/backend/internal/queue"
	"github.com/chive/backend/internal/storage"
	"github.com/chive/backend/internal/util"
	"github.com/chive/backend/pkg/logger"
	"github.com/chive/backend/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		JSON:   util.GetEnvBool("LOG_JSON", false),
		Prefix: "worker",
	})
	logger.Init(consoleLogger)

	// Init s3 bucket
	s3Client, err := storage.NewS3Client(ctx)
	if err != nil {
		logger.Fatal("Failed to create S3 client", "err", err)
	}
	bucket := storage.NewBucket(s3Client, util.GetEnvString("AWS_BUCKET", "chive"))

	worker := queue.NewWorker(
		bucket,
		cv.Executor{Path: util.GetEnvString("CV_EXE_PATH", "cv")},
		cv.ZipOutputs,
		util.GetEnv("WORK_DIR"),
		util.GetEnvDuration("PIPE_TIMEOUT", 5*time.Minute),
	)

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.PipelineQueue); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	concurrency := max(int(util.GetEnvNumeric("WORKER_CONCURRENCY", 2)), 1)

	// Prefetch matches the number of jobs run in parallel
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(concurrency, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.PipelineQueue,
		"pipeline_queue_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.PipelineQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.PipelineQueue, "concurrency", concurrency)

	g := new(errgroup.Group)
	g.SetLimit(concurrency)

consume:
	for {
		select {
		case <-ctx.Done():
			break consume
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.PipelineQueue)
				break consume
			}
			g.Go(func() error {
				handle(ctx, worker, ch, msg)
				return nil
			})
		}
	}

	logger.Info("Waiting for running jobs")
	_ = g.Wait()
	logger.Info("Worker stopped")
}

func handle(ctx context.Context, w *queue.Worker, pub queue.Publisher, msg amqp.Delivery) {
	logger.Info("Received message", "queue", queue.PipelineQueue, "correlation_id", msg.CorrelationId)
	w.Handle(context.WithoutCancel(ctx), pub, queue.PipelineQueue, msg)
}
