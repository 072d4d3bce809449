package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aipm-toolkit/aipmctl/internal/orchestrator"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report network and service health without changing anything",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	ctx, cancel := signalContext()
	defer cancel()

	report, err := app.orch.Status(ctx)
	if err != nil {
		return err
	}

	orchestrator.PrintStatus(os.Stdout, report)
	return nil
}
