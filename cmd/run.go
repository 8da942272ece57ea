package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reliefops/triage-cli/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single triage pass",
	Long:  "Fetches every unclassified report from the layer, classifies each, and writes the verdict back.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initTriage(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := executePass(ctx, env)
		if err != nil {
			return eris.Wrap(err, "triage pass")
		}

		zap.L().Info("run recorded", zap.String("run_id", run.ID))
		fmt.Println(pipeline.Summary(run.Report))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
