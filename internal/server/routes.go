package server

import (
	"github.com/labstack/echo/v4"

	"github.com/chive/backend/internal/server/middleware"
	"github.com/chive/backend/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Project routes
	apiRoutes.POST("/project/save", routes.SaveProjectHandler)
	apiRoutes.GET("/project/load", routes.LoadProjectHandler)
	apiRoutes.GET("/projects/info", routes.ProjectInfoHandler)
	apiRoutes.GET("/projects/infos", routes.ProjectInfosHandler)

	// Catalogue and execution routes
	apiRoutes.GET("/node-types", routes.NodeTypesHandler)
	apiRoutes.POST("/pipe", routes.PipeHandler)
}
