package cmd

import (
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Stop everything and remove the shared network",
	Long: `Full teardown to bare state: every managed container is removed
and the shared network deleted. Safe to run twice.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	ctx, cancel := signalContext()
	defer cancel()

	return withRunLock(func() error {
		return app.orch.Cleanup(ctx)
	})
}
