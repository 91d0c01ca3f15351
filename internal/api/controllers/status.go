package controllers

import (
	"net/http"

	"github.com/labstack/echo/v5"
)

type StatusController struct{}

func (ctrl *StatusController) Index(c *echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "ok", Message: "Bot web service running"})
}

func (ctrl *StatusController) Health(c *echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "healthy"})
}
