package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reliefops/triage-cli/internal/pipeline"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the layer on an interval",
	Long:  "Runs triage passes repeatedly until interrupted. A failed pass is logged and retried on the next tick.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initTriage(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		interval := watchInterval
		if interval == 0 {
			interval = time.Duration(cfg.Watch.IntervalSecs) * time.Second
		}

		zap.L().Info("watching layer", zap.Duration("interval", interval))

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			run, err := executePass(ctx, env)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				zap.L().Error("triage pass failed", zap.Error(err))
			} else {
				fmt.Println(pipeline.Summary(run.Report))
			}

			select {
			case <-ctx.Done():
				zap.L().Info("watch stopped")
				return nil
			case <-ticker.C:
			}
		}
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "polling interval (default from config)")
	rootCmd.AddCommand(watchCmd)
}
