package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aipm-toolkit/aipmctl/internal/orchestrator"
)

var startCmd = &cobra.Command{
	Use:   "start [all|service]",
	Short: "Start workflow services",
	Long: `Start workflow services on the shared network.

Without arguments the essential tier is started, plus any standalone
service whose image is already present locally. "all" starts every known
service across all tiers, essential first. A service name starts that one
service regardless of tier.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	ctx, cancel := signalContext()
	defer cancel()

	var summary *orchestrator.Summary
	err = withRunLock(func() error {
		switch {
		case len(args) == 0:
			summary, err = app.orch.StartEssential(ctx)
		case args[0] == "all":
			summary, err = app.orch.StartAll(ctx)
		default:
			summary, err = app.orch.StartOne(ctx, args[0])
		}
		return err
	})
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		// Interrupted mid-run: whatever started stays up, no summary.
		return ctx.Err()
	}

	orchestrator.PrintSummary(os.Stdout, summary)
	if !summary.Ok() {
		return fmt.Errorf("%d service(s) failed to start", len(summary.Failed))
	}
	return nil
}
