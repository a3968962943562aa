package orchestration

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/roundtable/config"
	"github.com/mohammad-safakhou/roundtable/internal/telemetry"
)

var orchestratorTracer trace.Tracer = otel.Tracer("roundtable/internal/orchestration")

// Orchestrator runs the round loop for multi-participant tasks: plan,
// assess, delegate, and stop on completion or an exhausted bound.
type Orchestrator struct {
	cfg       *config.Config
	logger    *log.Logger
	telemetry *telemetry.Telemetry
	manager   *Manager
	provider  LLMProvider
}

// NewOrchestrator creates an orchestrator with its manager bound to the
// given completion provider.
func NewOrchestrator(cfg *config.Config, provider LLMProvider, tel *telemetry.Telemetry) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		logger:    log.New(os.Stdout, "[ORCH] ", log.LstdFlags),
		telemetry: tel,
		manager:   NewManager(cfg, provider, tel),
		provider:  provider,
	}
}

// bounds resolves the loop limits for one run: per-run overrides win over
// configuration. A reset limit of zero means unbounded.
func (o *Orchestrator) bounds(opts RunOptions) (maxStall, maxRound, maxReset int) {
	maxStall = o.cfg.Orchestration.MaxStallCount
	maxRound = o.cfg.Orchestration.MaxRoundCount
	maxReset = o.cfg.Orchestration.MaxResetCount
	if opts.MaxStallCount > 0 {
		maxStall = opts.MaxStallCount
	}
	if opts.MaxRoundCount > 0 {
		maxRound = opts.MaxRoundCount
	}
	if opts.MaxResetCount > 0 {
		maxReset = opts.MaxResetCount
	}
	return maxStall, maxRound, maxReset
}

// Run executes one orchestration: initial planning, then bounded rounds of
// assessment and delegation until the task completes or a limit stops it.
func (o *Orchestrator) Run(ctx context.Context, task string, team []Participant, opts RunOptions) (RunResult, error) {
	if task == "" {
		return RunResult{}, fmt.Errorf("task must not be empty")
	}
	if len(team) == 0 {
		return RunResult{}, fmt.Errorf("team must have at least one participant")
	}

	participants := make(map[string]Participant, len(team))
	specs := make([]ParticipantSpec, 0, len(team))
	for _, p := range team {
		if p.Name() == "" {
			return RunResult{}, fmt.Errorf("participant name must not be empty")
		}
		if _, dup := participants[p.Name()]; dup {
			return RunResult{}, fmt.Errorf("duplicate participant name: %s", p.Name())
		}
		participants[p.Name()] = p
		specs = append(specs, ParticipantSpec{Name: p.Name(), Description: p.Description()})
	}

	runID := uuid.New().String()
	start := time.Now()
	maxStall, maxRound, maxReset := o.bounds(opts)

	ctx, span := orchestratorTracer.Start(ctx, "orchestration.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.max_round_count", maxRound),
			attribute.Int("run.max_stall_count", maxStall),
		))
	defer span.End()

	led := NewLedger(task, specs)
	usage := &Usage{}

	result := func(state State, answer string) RunResult {
		r := RunResult{
			RunID:     runID,
			Task:      task,
			State:     state,
			Answer:    answer,
			Rounds:    led.RoundCount(),
			Resets:    led.ResetCount(),
			Duration:  time.Since(start),
			Cost:      usage.Cost,
			Tokens:    usage.Total(),
			CreatedAt: start,
		}
		span.SetAttributes(
			attribute.String("run.state", string(state)),
			attribute.Int("run.rounds", r.Rounds),
			attribute.Int("run.resets", r.Resets),
		)
		if o.telemetry != nil {
			o.telemetry.RecordRunComplete(ctx, string(state), time.Since(start))
		}
		return r
	}

	o.logger.Printf("[%s] starting run: %s", runID, truncate(task, 120))

	taskLedger, err := o.manager.Plan(ctx, led, usage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result(StatePlanning, ""), fmt.Errorf("initial planning failed: %w", err)
	}
	led.AddMessage(RoleAssistant, taskLedger, "Manager")

	for led.RoundCount() < maxRound {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return result(StateRunning, led.PartialResult()), fmt.Errorf("run cancelled: %w", err)
		}

		// Reset cap is checked before the round is consumed.
		if maxReset > 0 && led.ResetCount() > maxReset {
			o.logger.Printf("[%s] reset limit reached (%d)", runID, led.ResetCount())
			return result(StateMaxReset, led.PartialResult()), nil
		}

		round := led.NextRound()
		if o.telemetry != nil {
			o.telemetry.RecordRound(ctx)
		}

		if limit := o.cfg.Orchestration.MaxTranscriptTokens; limit > 0 && led.EstimateTokens() > limit {
			if err := o.manager.SummarizeTranscript(ctx, led, usage); err != nil {
				o.logger.Printf("[%s] transcript summarization failed: %v", runID, err)
			} else {
				o.logger.Printf("[%s] transcript summarized at round %d", runID, round)
			}
		}

		progress := o.manager.CreateProgressLedger(ctx, led, usage)
		o.logger.Printf("[%s] round %d: satisfied=%t loop=%t progress=%t speaker=%s",
			runID, round, progress.IsRequestSatisfied, progress.IsInLoop, progress.IsProgressBeingMade, progress.NextSpeaker)

		if progress.IsRequestSatisfied {
			answer, err := o.manager.PrepareFinalAnswer(ctx, led, usage)
			if err != nil {
				o.logger.Printf("[%s] final answer synthesis failed: %v, using partial result", runID, err)
				answer = led.PartialResult()
			}
			span.SetStatus(codes.Ok, "completed")
			return result(StateCompleted, answer), nil
		}

		if !progress.IsProgressBeingMade || progress.IsInLoop {
			stall := led.MarkStall()
			if stall > maxStall {
				o.logger.Printf("[%s] stalled %d rounds, replanning", runID, stall)
				taskLedger, err := o.manager.Replan(ctx, led, usage)
				if err != nil {
					// Ledger stays as-is; the stall counter remains over
					// the limit, so replanning is retried next round.
					o.logger.Printf("[%s] replanning failed: %v", runID, err)
					continue
				}
				led.Reset()
				led.AddMessage(RoleAssistant, taskLedger, "Manager")
				if o.telemetry != nil {
					o.telemetry.RecordReplan(ctx)
				}
				continue
			}
			o.logger.Printf("[%s] progress stalled (%d/%d), continuing", runID, stall, maxStall)
		}

		speaker, ok := participants[progress.NextSpeaker]
		if !ok {
			err := fmt.Errorf("assessment selected unknown speaker %q", progress.NextSpeaker)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.logger.Printf("[%s] %v", runID, err)
			return result(StateUnknownSpeaker, led.PartialResult()), nil
		}

		led.AddMessage(RoleAssistant, progress.Instruction, "Manager")
		response := speaker.Respond(ctx, TurnInput{
			Task:        task,
			Plan:        led.Plan(),
			Instruction: progress.Instruction,
			Transcript:  led.Transcript(),
		})
		led.AddMessage(RoleUser, response, speaker.Name())
	}

	o.logger.Printf("[%s] round limit reached (%d)", runID, led.RoundCount())
	return result(StateMaxRound, led.PartialResult()), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
