package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/roundtable/config"
	"github.com/mohammad-safakhou/roundtable/internal/orchestration"
	"github.com/mohammad-safakhou/roundtable/internal/telemetry"
)

// Runner executes one orchestration run. Satisfied by
// *orchestration.Orchestrator; tests substitute their own.
type Runner interface {
	Run(ctx context.Context, task string, team []orchestration.Participant, opts orchestration.RunOptions) (orchestration.RunResult, error)
}

// RunsHandler exposes run submission and inspection over HTTP.
type RunsHandler struct {
	cfg      *config.Config
	runner   Runner
	provider orchestration.LLMProvider
	journal  *Journal
	logger   *log.Logger
}

// NewRunsHandler wires the runs API around an orchestrator and journal.
func NewRunsHandler(cfg *config.Config, runner Runner, provider orchestration.LLMProvider, journal *Journal) *RunsHandler {
	return &RunsHandler{
		cfg:      cfg,
		runner:   runner,
		provider: provider,
		journal:  journal,
		logger:   log.New(log.Writer(), "[RUNS] ", log.LstdFlags),
	}
}

// Register mounts the runs routes on the given group.
func (h *RunsHandler) Register(g *echo.Group) {
	g.POST("", h.createRun)
	g.GET("", h.listRuns)
	g.GET("/:id", h.getRun)
}

type createRunRequest struct {
	Task    string                          `json:"task"`
	Team    []orchestration.ParticipantSpec `json:"team"`
	Options orchestration.RunOptions        `json:"options"`
}

type createRunResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h *RunsHandler) createRun(c echo.Context) error {
	var req createRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Task == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "task is required")
	}
	if len(req.Team) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "team must have at least one participant")
	}

	team, err := orchestration.NewTeam(req.Team, h.cfg, h.provider)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rec := &RunRecord{
		ID:          uuid.New().String(),
		Task:        req.Task,
		Team:        req.Team,
		Status:      "pending",
		SubmittedAt: time.Now(),
	}
	h.journal.Add(rec)

	go func() {
		timeout := h.cfg.General.DefaultTimeout
		if timeout <= 0 {
			timeout = 15 * time.Minute
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		h.journal.SetRunning(rec.ID)
		result, runErr := h.runner.Run(ctx, req.Task, team, req.Options)
		h.journal.SetFinished(rec.ID, result, runErr)
		if runErr != nil {
			h.logger.Printf("run %s failed: %v", rec.ID, runErr)
		} else {
			h.logger.Printf("run %s finished: state=%s rounds=%d", rec.ID, result.State, result.Rounds)
		}
	}()

	return c.JSON(http.StatusAccepted, createRunResponse{ID: rec.ID, Status: "pending"})
}

func (h *RunsHandler) listRuns(c echo.Context) error {
	return c.JSON(http.StatusOK, h.journal.List())
}

func (h *RunsHandler) getRun(c echo.Context) error {
	rec, ok := h.journal.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, rec)
}

// CostsHandler reports accumulated completion spend.
type CostsHandler struct {
	tele *telemetry.Telemetry
}

func NewCostsHandler(tele *telemetry.Telemetry) *CostsHandler {
	return &CostsHandler{tele: tele}
}

func (h *CostsHandler) Register(g *echo.Group) {
	g.GET("", h.getCosts)
}

func (h *CostsHandler) getCosts(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tele.GetCostSummary())
}
