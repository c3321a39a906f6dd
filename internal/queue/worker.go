package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/chive/backend/internal/util"
	"github.com/chive/backend/pkg/logger"
)

// MaxRetries bounds how often a job whose inputs could not be fetched is
// retried before the failure is reported.
const MaxRetries = 3

const (
	transferTries = 3
	transferDelay = 500 * time.Millisecond
)

var ErrFetchInput = errors.New("failed to fetch input")

type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Runner executes a pipeline over input files, writing outputs named after
// the inputs into outputDir. cv.Executor is the production Runner.
type Runner interface {
	Run(ctx context.Context, outputDir string, inputs []string, pipeline []byte) error
}

// Zipper archives the outputs in dir that are named in names.
type Zipper func(w io.Writer, dir string, names []string) (int, error)

type Worker struct {
	store   ObjectStore
	runner  Runner
	zip     Zipper
	workDir string
	timeout time.Duration
	// delay between object store attempts
	retryDelay time.Duration
}

func NewWorker(store ObjectStore, runner Runner, zip Zipper, workDir string, timeout time.Duration) *Worker {
	return &Worker{
		store:      store,
		runner:     runner,
		zip:        zip,
		workDir:    workDir,
		timeout:    timeout,
		retryDelay: transferDelay,
	}
}

// Process runs job in a scratch directory that is removed afterwards.
func (w *Worker) Process(ctx context.Context, job PipelineJob) (PipelineResult, error) {
	if err := job.Validate(); err != nil {
		return PipelineResult{}, err
	}
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	dir, err := os.MkdirTemp(w.workDir, "job-"+job.JobID+"-")
	if err != nil {
		return PipelineResult{}, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inDir, outDir := filepath.Join(dir, "input"), filepath.Join(dir, "output")
	for _, d := range []string{inDir, outDir} {
		if err := os.Mkdir(d, 0o755); err != nil {
			return PipelineResult{}, fmt.Errorf("create work dir: %w", err)
		}
	}

	paths := make([]string, 0, len(job.Inputs))
	names := make([]string, 0, len(job.Inputs))
	for _, key := range job.Inputs {
		data, err := util.RetryWithContext(ctx, transferTries, w.retryDelay, func(ctx context.Context) ([]byte, error) {
			return w.store.Get(ctx, key)
		})
		if err != nil {
			return PipelineResult{}, fmt.Errorf("%w %s: %w", ErrFetchInput, key, err)
		}
		name := path.Base(key)
		p := filepath.Join(inDir, name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return PipelineResult{}, fmt.Errorf("write input %s: %w", name, err)
		}
		paths = append(paths, p)
		names = append(names, name)
	}

	if err := w.runner.Run(ctx, outDir, paths, job.Pipeline); err != nil {
		return PipelineResult{}, err
	}

	var archive bytes.Buffer
	n, err := w.zip(&archive, outDir, names)
	if err != nil {
		return PipelineResult{}, err
	}
	err = util.RetryErrWithContext(ctx, transferTries, w.retryDelay, func(ctx context.Context) error {
		return w.store.Put(ctx, job.ResultKey, archive.Bytes(), "application/zip")
	})
	if err != nil {
		return PipelineResult{}, err
	}

	return PipelineResult{JobID: job.JobID, ResultKey: job.ResultKey, Files: n}, nil
}

// Handle processes one delivery from queueName and settles it. Undecodable
// messages are dead-lettered, input fetch failures are retried up to
// MaxRetries, and every other outcome is replied to the sender.
func (w *Worker) Handle(ctx context.Context, pub Publisher, queueName string, msg amqp091.Delivery) {
	var job PipelineJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		logger.Error("Failed to decode pipeline job", "err", err)
		DeadLetter(ctx, pub, msg, queueName)
		return
	}

	start := time.Now()
	res, err := w.Process(ctx, job)
	if err != nil {
		if errors.Is(err, ErrFetchInput) && Retries(msg) < MaxRetries {
			logger.Warn("Retrying pipeline job", "job", job.JobID, "err", err)
			Retry(ctx, pub, msg, queueName)
			return
		}
		logger.Error("Pipeline job failed", "job", job.JobID, "err", err)
		res = PipelineResult{JobID: job.JobID, Error: err.Error()}
	} else {
		logger.Info("Pipeline job processed", "job", job.JobID, "files", res.Files, "duration", time.Since(start))
	}

	if err := w.reply(ctx, pub, msg, res); err != nil {
		logger.Error("Failed to reply to pipeline job", "job", job.JobID, "err", err)
	}
	ack(msg)
}

func (w *Worker) reply(ctx context.Context, pub Publisher, msg amqp091.Delivery, res PipelineResult) error {
	if msg.ReplyTo == "" {
		logger.Debug("Pipeline job has no reply queue", "job", res.JobID)
		return nil
	}
	body, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return pub.PublishWithContext(ctx, "", msg.ReplyTo, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		CorrelationId: msg.CorrelationId,
		Body:          body,
	})
}
