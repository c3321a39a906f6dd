package middleware

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/chive/backend/internal/queue"
	"github.com/chive/backend/pkg/project"
)

type ProjectStore interface {
	Save(ctx context.Context, creatorID, creatorUsername string, p project.Project) (project.Info, error)
	Load(ctx context.Context, creatorID string, id int64) (project.Project, error)
	Info(ctx context.Context, creatorID string, id int64) (project.Info, error)
	List(ctx context.Context, creatorID string) ([]project.Info, error)
}

type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	DeleteFolder(ctx context.Context, prefix string) error
}

type JobDispatcher interface {
	Dispatch(ctx context.Context, job queue.PipelineJob) (queue.PipelineResult, error)
}

type Locker interface {
	WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type AppUser struct {
	ID       string
	Username string
}

type App struct {
	Projects    ProjectStore
	Objects     ObjectStore
	Jobs        JobDispatcher
	Locks       Locker
	PipeLimiter *rate.Limiter
	PipeTimeout time.Duration
	Now         func() time.Time
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	if app.Now == nil {
		app.Now = time.Now
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
