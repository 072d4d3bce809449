package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aipm-toolkit/aipmctl/internal/orchestrator"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop, pause, then start the essential tier again",
	Args:  cobra.NoArgs,
	RunE:  runRestart,
}

func init() {
	rootCmd.AddCommand(restartCmd)
}

func runRestart(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	ctx, cancel := signalContext()
	defer cancel()

	var summary *orchestrator.Summary
	err = withRunLock(func() error {
		summary, err = app.orch.Restart(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	orchestrator.PrintSummary(os.Stdout, summary)
	if !summary.Ok() {
		return fmt.Errorf("%d service(s) failed to start", len(summary.Failed))
	}
	return nil
}
