package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/chive/backend/internal/cv"
	"github.com/chive/backend/internal/db"
	"github.com/chive/backend/internal/queue"
	"github.com/chive/backend/internal/server/middleware"
	"github.com/chive/backend/internal/util"
	"github.com/chive/backend/pkg/leaselock"
	"github.com/chive/backend/pkg/logger"
	"github.com/chive/backend/pkg/pipeline"
)

// PipeHandler runs the posted pipeline graph over the posted images and
// responds with a zip archive of the results. Only one run per project is
// admitted at a time.
func PipeHandler(c echo.Context) error {
	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, messageResponse{Message: "Unauthorized"})
	}
	app := c.(*middleware.AppContext).App

	id, err := strconv.ParseInt(c.QueryParam("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid project id"})
	}

	if app.PipeLimiter != nil && !app.PipeLimiter.Allow() {
		return c.JSON(http.StatusTooManyRequests, messageResponse{Message: "Too many pipeline runs, try again later"})
	}

	ctx := c.Request().Context()
	if _, err := app.Projects.Info(ctx, user.ID, id); err != nil {
		if errors.Is(err, db.ErrProjectNotFound) {
			return c.JSON(http.StatusNotFound, messageResponse{Message: "Project not found"})
		}
		logger.Error("Failed to get project info", "project", id, "err", err)
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Internal server error"})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
	}

	data := form.Value[pipeline.FieldData]
	if len(data) == 0 || data[0] == "" {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Missing pipeline data"})
	}
	g, err := pipeline.DecodeData(data[0])
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
	}

	var uploads []*multipart.FileHeader
	for _, fh := range form.File[pipeline.FieldImages] {
		if cv.IsImageFile(fh.Filename) {
			uploads = append(uploads, fh)
		} else {
			logger.Debug("Skipping non-image upload", "file", fh.Filename)
		}
	}
	if len(uploads) == 0 {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "No images provided"})
	}

	graphJSON, err := json.Marshal(g)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Internal server error"})
	}

	err = app.Locks.WithLease(ctx, leaselock.ProjectKey(id), func(ctx context.Context) error {
		return runPipe(ctx, c, app, id, uploads, graphJSON)
	})
	if errors.Is(err, leaselock.ErrBusy) {
		return c.JSON(http.StatusConflict, messageResponse{Message: "A pipeline is already running for this project"})
	}
	if err != nil {
		logger.Error("Failed to run pipeline", "project", id, "err", err)
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Failed to run pipeline"})
	}
	return nil
}

func runPipe(ctx context.Context, c echo.Context, app *middleware.App, projectID int64, uploads []*multipart.FileHeader, graphJSON []byte) error {
	jobID, err := gonanoid.New()
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Objects.DeleteFolder(context.WithoutCancel(ctx), queue.JobPrefix(jobID)); err != nil {
			logger.Warn("Failed to delete job objects", "job", jobID, "err", err)
		}
	}()

	filenames := make([]string, len(uploads))
	for i, fh := range uploads {
		filenames[i] = fh.Filename
	}
	names := cv.UniqueNames(filenames)

	inputs := make([]string, 0, len(uploads))
	for i, fh := range uploads {
		content, err := readUpload(fh)
		if err != nil {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "Failed to read " + fh.Filename})
		}
		key := queue.InputKey(jobID, names[i])
		err = util.RetryErrWithContext(ctx, 3, 200*time.Millisecond, func(ctx context.Context) error {
			return app.Objects.Put(ctx, key, content, fh.Header.Get("Content-Type"))
		})
		if err != nil {
			return fmt.Errorf("upload input: %w", err)
		}
		inputs = append(inputs, key)
	}

	runCtx := ctx
	if app.PipeTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, app.PipeTimeout)
		defer cancel()
	}

	res, err := app.Jobs.Dispatch(runCtx, queue.PipelineJob{
		JobID:     jobID,
		ProjectID: projectID,
		Inputs:    inputs,
		Pipeline:  graphJSON,
		ResultKey: queue.ResultKey(jobID),
	})
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("Pipeline timed out", "job", jobID, "project", projectID)
		return c.JSON(http.StatusRequestTimeout, messageResponse{Message: "Pipeline timed out"})
	}
	if err != nil {
		return fmt.Errorf("dispatch job %s: %w", jobID, err)
	}
	if res.Error != "" {
		logger.Error("Pipeline job failed", "job", jobID, "err", res.Error)
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Pipeline failed: " + res.Error})
	}

	archive, err := app.Objects.Get(ctx, res.ResultKey)
	if err != nil {
		return fmt.Errorf("fetch result: %w", err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, pipeline.ArchiveName(app.Now())))
	return c.Blob(http.StatusOK, "application/zip", archive)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
