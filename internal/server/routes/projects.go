package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/chive/backend/internal/db"
	"github.com/chive/backend/internal/server/middleware"
	"github.com/chive/backend/pkg/graph"
	"github.com/chive/backend/pkg/logger"
	"github.com/chive/backend/pkg/project"
)

type messageResponse struct {
	Message string `json:"message"`
}

// SaveProjectHandler stores a project document, creating it when its id is
// unknown to the caller.
func SaveProjectHandler(c echo.Context) error {
	type saveProjectBody struct {
		ID    int64           `json:"id" validate:"min=0"`
		Title string          `json:"title" validate:"max=200"`
		Data  json.RawMessage `json:"data" validate:"required"`
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, messageResponse{Message: "Unauthorized"})
	}

	body := new(saveProjectBody)
	if err := c.Bind(body); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(body); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
	}

	g, err := graph.Parse(body.Data)
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid project data: " + err.Error()})
	}

	title := body.Title
	if title == "" {
		title = project.DefaultTitle
	}

	ctx := c.Request().Context()
	projects := c.(*middleware.AppContext).App.Projects
	info, err := projects.Save(ctx, user.ID, user.Username, project.Project{
		ID:    body.ID,
		Title: title,
		Data:  g,
	})
	if err != nil {
		logger.Error("Failed to save project", "project", body.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Failed to save project"})
	}

	return c.JSON(http.StatusOK, project.SaveResponse{
		Message: "Project saved",
		Project: info,
	})
}

func LoadProjectHandler(c echo.Context) error {
	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, messageResponse{Message: "Unauthorized"})
	}

	id, err := strconv.ParseInt(c.QueryParam("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid project id"})
	}

	ctx := c.Request().Context()
	p, err := c.(*middleware.AppContext).App.Projects.Load(ctx, user.ID, id)
	if errors.Is(err, db.ErrProjectNotFound) {
		return c.JSON(http.StatusNotFound, messageResponse{Message: "Project not found"})
	}
	if err != nil {
		logger.Error("Failed to load project", "project", id, "err", err)
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Failed to load project"})
	}

	return c.JSON(http.StatusOK, p)
}

func ProjectInfoHandler(c echo.Context) error {
	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, messageResponse{Message: "Unauthorized"})
	}

	id, err := strconv.ParseInt(c.QueryParam("projectId"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid project id"})
	}

	ctx := c.Request().Context()
	info, err := c.(*middleware.AppContext).App.Projects.Info(ctx, user.ID, id)
	if errors.Is(err, db.ErrProjectNotFound) {
		return c.JSON(http.StatusNotFound, messageResponse{Message: "Project not found"})
	}
	if err != nil {
		logger.Error("Failed to get project info", "project", id, "err", err)
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Failed to get project info"})
	}

	return c.JSON(http.StatusOK, info)
}

// ProjectInfosHandler lists the caller's projects, most recently updated
// first.
func ProjectInfosHandler(c echo.Context) error {
	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, messageResponse{Message: "Unauthorized"})
	}

	ctx := c.Request().Context()
	infos, err := c.(*middleware.AppContext).App.Projects.List(ctx, user.ID)
	if err != nil {
		logger.Error("Failed to list projects", "err", err)
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Failed to list projects"})
	}
	if infos == nil {
		infos = []project.Info{}
	}

	return c.JSON(http.StatusOK, infos)
}
