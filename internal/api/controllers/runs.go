package controllers

import (
	"net/http"
	"strconv"

	"github.com/datallboy/goytbot/internal/app"
	"github.com/datallboy/goytbot/internal/engine"
	"github.com/labstack/echo/v5"
)

const maxRunsLimit = 200

// ActiveRuns reports the runs currently in flight.
type ActiveRuns interface {
	ActiveRuns() []engine.ActiveRun
}

type RunsController struct {
	App    *app.Context
	Active ActiveRuns
}

// List returns the most recent runs. ?limit= caps the count.
func (ctrl *RunsController) List(c *echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := ctrl.App.Store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		ctrl.App.Logger.Error("list runs: %v", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not load runs"})
	}

	resp := RunListResponse{Runs: make([]RunSummary, 0, len(runs))}
	for _, r := range runs {
		resp.Runs = append(resp.Runs, summarize(r))
	}
	return c.JSON(http.StatusOK, resp)
}

// Get returns one run with its items.
func (ctrl *RunsController) Get(c *echo.Context) error {
	id := c.Param("id")

	run, err := ctrl.App.Store.GetRun(c.Request().Context(), id)
	if err != nil {
		ctrl.App.Logger.Error("get run %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not load run"})
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "run not found"})
	}
	return c.JSON(http.StatusOK, run)
}

func (ctrl *RunsController) ListActive(c *echo.Context) error {
	active := []engine.ActiveRun{}
	if ctrl.Active != nil {
		active = append(active, ctrl.Active.ActiveRuns()...)
	}
	return c.JSON(http.StatusOK, active)
}
