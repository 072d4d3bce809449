package cmd

import (
	"fmt"
	"os"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/spf13/cobra"
)

var (
	logsFollow bool
	logsTail   string
)

var logsCmd = &cobra.Command{
	Use:   "logs <service>",
	Short: "Show engine logs for a service's container",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "follow the log stream")
	logsCmd.Flags().StringVar(&logsTail, "tail", "100", "number of lines from the end (or \"all\")")
}

func runLogs(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	ctx, cancel := signalContext()
	defer cancel()

	svc, ok := app.reg.Get(args[0])
	if !ok {
		return fmt.Errorf("unknown service %q (known: %v)", args[0], app.reg.Names())
	}

	name := app.cfg.Compose.ProjectPrefix + "-" + svc.Name
	reader, err := app.client.ContainerLogs(ctx, name, logsFollow, logsTail)
	if err != nil {
		return err
	}
	defer reader.Close()

	// Engine log streams are multiplexed; demux stdout/stderr apart.
	_, err = stdcopy.StdCopy(os.Stdout, os.Stderr, reader)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to stream logs: %w", err)
	}
	return nil
}
