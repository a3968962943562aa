package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/roundtable/config"
	"github.com/mohammad-safakhou/roundtable/internal/orchestration"
	srv "github.com/mohammad-safakhou/roundtable/internal/server"
	"github.com/mohammad-safakhou/roundtable/internal/telemetry"
)

func main() {
	var root = &cobra.Command{Use: "roundtable"}

	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			return srv.Run(cfg)
		},
	}

	var rosterPath string
	var timeout time.Duration
	var run = &cobra.Command{
		Use:   "run [task]",
		Short: "Run one orchestration to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			roster, err := orchestration.LoadRoster(rosterPath)
			if err != nil {
				return err
			}
			provider, err := orchestration.NewLLMProvider(cfg.LLM)
			if err != nil {
				return err
			}
			tele := telemetry.NewTelemetry(cfg.Telemetry)
			orch := orchestration.NewOrchestrator(cfg, provider, tele)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			result, err := orch.Run(ctx, args[0], roster.BuildTeam(cfg, provider), roster.RunOptions())
			if err != nil {
				return err
			}
			fmt.Printf("state: %s (rounds=%d resets=%d cost=$%.4f)\n\n", result.State, result.Rounds, result.Resets, result.Cost)
			fmt.Println(result.Answer)
			return nil
		},
	}
	run.Flags().StringVar(&rosterPath, "roster", "roster.yaml", "roster YAML file describing the team")
	run.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "overall run timeout")

	root.AddCommand(serve, run)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
