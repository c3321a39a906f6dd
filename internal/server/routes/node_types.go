package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chive/backend/pkg/nodetype"
)

func NodeTypesHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, nodetype.Describe())
}
