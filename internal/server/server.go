package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/roundtable/config"
	"github.com/mohammad-safakhou/roundtable/internal/orchestration"
	"github.com/mohammad-safakhou/roundtable/internal/telemetry"
)

// Run starts the HTTP API: run submission, run inspection, cost summary,
// health, and Prometheus metrics.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	ctx := context.Background()
	providers, registry, err := telemetry.Setup(ctx, cfg.Telemetry, telemetry.SetupOptions{
		ServiceName:    "roundtable",
		ServiceVersion: "dev",
	})
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	tele := telemetry.NewTelemetry(cfg.Telemetry)
	provider, err := orchestration.NewLLMProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	orch := orchestration.NewOrchestrator(cfg, provider, tele)
	journal := NewJournal()

	api := e.Group("/api")
	NewRunsHandler(cfg, orch, provider, journal).Register(api.Group("/runs"))
	NewCostsHandler(tele).Register(api.Group("/costs"))

	baseLogger.Printf("listening on %s", cfg.Server.Listen)
	return e.Start(cfg.Server.Listen)
}
