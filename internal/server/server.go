package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/chive/backend/internal/db"
	"github.com/chive/backend/internal/queue"
	mid "github.com/chive/backend/internal/server/middleware"
	"github.com/chive/backend/internal/storage"
	"github.com/chive/backend/internal/util"
	"github.com/chive/backend/pkg/leaselock"
	"github.com/chive/backend/pkg/logger"
)

const defaultPipeTimeout = 5 * time.Minute

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New builds the HTTP server around app without starting it.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(util.GetEnvString("BODY_LIMIT", "512M")))

	RegisterRoutes(e)
	return e
}

func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.GetEnv("DATABASE_URL")
	if err := db.Migrate(util.GetEnvString("MIGRATIONS_PATH", "migrations"), databaseURL); err != nil {
		logger.Fatal("Failed to migrate database", "err", err)
	}

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.SetupQueues(ch, queue.PipelineQueue); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}
	dispatcher, err := queue.NewDispatcher(ch, queue.PipelineQueue)
	if err != nil {
		logger.Fatal("Failed to start dispatcher", "err", err)
	}

	s3Client, err := storage.NewS3Client(ctx)
	if err != nil {
		logger.Fatal("Failed to create S3 client", "err", err)
	}

	pipeTimeout := util.GetEnvDuration("PIPE_TIMEOUT", defaultPipeTimeout)
	hostname, _ := os.Hostname()

	app := &mid.App{
		Projects: db.NewProjects(conn),
		Objects:  storage.NewBucket(s3Client, util.GetEnvString("AWS_BUCKET", "chive")),
		Jobs:     dispatcher,
		Locks: leaselock.New(conn,
			leaselock.WithTTL(pipeTimeout+time.Minute),
			leaselock.WithOwner(hostname),
		),
		PipeLimiter: rate.NewLimiter(
			rate.Limit(util.GetEnvNumeric("PIPE_RATE", 2)),
			int(util.GetEnvNumeric("PIPE_BURST", 5)),
		),
		PipeTimeout: pipeTimeout,
	}
	e := New(app)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
