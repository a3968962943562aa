package telemetry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/mohammad-safakhou/roundtable/config"
)

var (
	orchMetricsOnce  sync.Once
	runsCompleted    otelmetric.Int64Counter
	roundsTotal      otelmetric.Int64Counter
	replansTotal     otelmetric.Int64Counter
	llmTokensTotal   otelmetric.Int64Counter
	llmCostDollars   otelmetric.Float64Counter
	runDurationHisto otelmetric.Float64Histogram
)

func initOrchMetrics() {
	meter := otel.Meter("roundtable/orchestration")
	var err error
	runsCompleted, err = meter.Int64Counter(
		"orchestration_runs_total",
		otelmetric.WithDescription("Orchestration runs finished, labeled by terminal state"),
	)
	if err != nil {
		log.Printf("telemetry metrics init: orchestration_runs_total: %v", err)
	}
	roundsTotal, err = meter.Int64Counter(
		"orchestration_rounds_total",
		otelmetric.WithDescription("Rounds consumed across all runs"),
	)
	if err != nil {
		log.Printf("telemetry metrics init: orchestration_rounds_total: %v", err)
	}
	replansTotal, err = meter.Int64Counter(
		"orchestration_replans_total",
		otelmetric.WithDescription("Session resets triggered by stall detection"),
	)
	if err != nil {
		log.Printf("telemetry metrics init: orchestration_replans_total: %v", err)
	}
	llmTokensTotal, err = meter.Int64Counter(
		"llm_tokens_total",
		otelmetric.WithDescription("Tokens consumed by completion calls, labeled by model and direction"),
	)
	if err != nil {
		log.Printf("telemetry metrics init: llm_tokens_total: %v", err)
	}
	llmCostDollars, err = meter.Float64Counter(
		"llm_cost_dollars_total",
		otelmetric.WithDescription("Estimated completion spend in dollars"),
	)
	if err != nil {
		log.Printf("telemetry metrics init: llm_cost_dollars_total: %v", err)
	}
	runDurationHisto, err = meter.Float64Histogram(
		"orchestration_run_duration_seconds",
		otelmetric.WithDescription("Wall-clock duration of finished runs"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		log.Printf("telemetry metrics init: orchestration_run_duration_seconds: %v", err)
	}
}

// Telemetry tracks run outcomes and completion spend. Counters are
// exported through OpenTelemetry; the cost tracker keeps process-local
// totals for the cost summary endpoint.
type Telemetry struct {
	config      config.TelemetryConfig
	logger      *log.Logger
	costTracker *CostTracker
}

// CostTracker tracks completion spend across models.
type CostTracker struct {
	mu sync.RWMutex

	ModelCosts  map[string]float64
	ModelTokens map[string]int64
	TotalCost   float64
	TotalTokens int64
}

// CostSummary is a point-in-time snapshot of accumulated spend.
type CostSummary struct {
	TotalCost   float64            `json:"total_cost"`
	TotalTokens int64              `json:"total_tokens"`
	ModelCosts  map[string]float64 `json:"model_costs"`
	ModelTokens map[string]int64   `json:"model_tokens"`
}

// NewTelemetry creates a new telemetry instance
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	return &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		costTracker: &CostTracker{
			ModelCosts:  make(map[string]float64),
			ModelTokens: make(map[string]int64),
		},
	}
}

// RecordLLMCall records token usage and cost for one completion call.
func (t *Telemetry) RecordLLMCall(ctx context.Context, model string, inputTokens, outputTokens int64, cost float64) {
	if t.config.CostTracking {
		t.costTracker.mu.Lock()
		t.costTracker.ModelCosts[model] += cost
		t.costTracker.ModelTokens[model] += inputTokens + outputTokens
		t.costTracker.TotalCost += cost
		t.costTracker.TotalTokens += inputTokens + outputTokens
		t.costTracker.mu.Unlock()
	}

	orchMetricsOnce.Do(initOrchMetrics)
	ctx = contextOrBackground(ctx)
	if llmTokensTotal != nil {
		llmTokensTotal.Add(ctx, inputTokens, otelmetric.WithAttributes(
			attribute.String("model", model),
			attribute.String("direction", "input"),
		))
		llmTokensTotal.Add(ctx, outputTokens, otelmetric.WithAttributes(
			attribute.String("model", model),
			attribute.String("direction", "output"),
		))
	}
	if llmCostDollars != nil {
		llmCostDollars.Add(ctx, cost, otelmetric.WithAttributes(attribute.String("model", model)))
	}
}

// RecordRound counts one consumed round.
func (t *Telemetry) RecordRound(ctx context.Context) {
	orchMetricsOnce.Do(initOrchMetrics)
	if roundsTotal != nil {
		roundsTotal.Add(contextOrBackground(ctx), 1)
	}
}

// RecordReplan counts one stall-triggered session reset.
func (t *Telemetry) RecordReplan(ctx context.Context) {
	orchMetricsOnce.Do(initOrchMetrics)
	if replansTotal != nil {
		replansTotal.Add(contextOrBackground(ctx), 1)
	}
}

// RecordRunComplete records a finished run and its terminal state.
func (t *Telemetry) RecordRunComplete(ctx context.Context, state string, duration time.Duration) {
	orchMetricsOnce.Do(initOrchMetrics)
	ctx = contextOrBackground(ctx)
	if runsCompleted != nil {
		runsCompleted.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("state", state)))
	}
	if runDurationHisto != nil {
		runDurationHisto.Record(ctx, duration.Seconds(), otelmetric.WithAttributes(attribute.String("state", state)))
	}
	if t.config.PeriodicLogs {
		t.logger.Printf("run finished: state=%s duration=%v", state, duration)
	}
}

// GetCostSummary returns a snapshot of accumulated completion spend.
func (t *Telemetry) GetCostSummary() CostSummary {
	t.costTracker.mu.RLock()
	defer t.costTracker.mu.RUnlock()

	summary := CostSummary{
		TotalCost:   t.costTracker.TotalCost,
		TotalTokens: t.costTracker.TotalTokens,
		ModelCosts:  make(map[string]float64, len(t.costTracker.ModelCosts)),
		ModelTokens: make(map[string]int64, len(t.costTracker.ModelTokens)),
	}
	for model, cost := range t.costTracker.ModelCosts {
		summary.ModelCosts[model] = cost
	}
	for model, tokens := range t.costTracker.ModelTokens {
		summary.ModelTokens[model] = tokens
	}
	return summary
}

// GetPerformanceReport renders a human-readable spend report.
func (t *Telemetry) GetPerformanceReport() string {
	summary := t.GetCostSummary()
	report := fmt.Sprintf("Total spend: $%.4f across %d tokens\n", summary.TotalCost, summary.TotalTokens)
	for model, cost := range summary.ModelCosts {
		report += fmt.Sprintf("  %s: $%.4f (%d tokens)\n", model, cost, summary.ModelTokens[model])
	}
	return report
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
