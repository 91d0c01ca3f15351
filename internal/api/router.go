package api

import (
	"github.com/datallboy/goytbot/internal/api/controllers"
	"github.com/datallboy/goytbot/internal/app"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

func RegisterRoutes(e *echo.Echo, app *app.Context, active controllers.ActiveRuns) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	statusCtrl := &controllers.StatusController{}
	runsCtrl := &controllers.RunsController{App: app, Active: active}

	// Liveness endpoints for the hosting platform
	e.GET("/", statusCtrl.Index)
	e.GET("/health", statusCtrl.Health)

	// Run history
	e.GET("/api/runs", runsCtrl.List)
	e.GET("/api/runs/active", runsCtrl.ListActive)
	e.GET("/api/runs/:id", runsCtrl.Get)
}
