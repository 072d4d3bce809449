package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aipm-toolkit/aipmctl/internal/docker"
	"github.com/aipm-toolkit/aipmctl/internal/ports"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose common orchestration problems",
	Long: `Check engine reachability, the shared network, compose files,
port conflicts and stale containers. With --fix, apply the safe repairs:
create the missing network and remove exited managed containers.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "apply safe repairs")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	ctx, cancel := signalContext()
	defer cancel()

	if doctorFix {
		return withRunLock(func() error { return doctorRun(ctx, app) })
	}
	return doctorRun(ctx, app)
}

func doctorRun(ctx context.Context, app *app) error {
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()
	problems := 0

	// Engine reachability is the precondition for everything else.
	if err := app.client.Ping(ctx); err != nil {
		fmt.Printf("%s container engine unreachable: %v\n", bad("✗"), err)
		return fmt.Errorf("container engine unreachable")
	}
	fmt.Printf("%s container engine reachable\n", ok("✓"))

	if _, err := app.netmgr.Inspect(ctx); err != nil {
		if doctorFix {
			if err := app.netmgr.Ensure(ctx); err != nil {
				return err
			}
			fmt.Printf("%s network %s created\n", ok("✓"), app.netmgr.Name())
		} else {
			fmt.Printf("%s network %s absent (run with --fix, or aipmctl start)\n", warn("!"), app.netmgr.Name())
			problems++
		}
	} else {
		fmt.Printf("%s network %s present\n", ok("✓"), app.netmgr.Name())
	}

	for _, svc := range app.reg.All() {
		if !svc.Standalone() {
			if _, err := app.cfg.ComposePath(svc.ComposeFile); err != nil {
				fmt.Printf("%s %s: %v\n", bad("✗"), svc.Name, err)
				problems++
				continue
			}
		}

		status, err := app.resolver.Check(ctx, svc.Port)
		if err != nil {
			return err
		}
		switch status.State {
		case ports.External:
			fmt.Printf("%s %s: port %d held by an unrelated process (pids %v)\n",
				bad("✗"), svc.Name, svc.Port, status.PIDs)
			problems++
		default:
			fmt.Printf("%s %s: port %d %s\n", ok("✓"), svc.Name, svc.Port, status.State)
		}
	}

	// Exited managed containers hold names (and sometimes ports) hostage.
	managed, err := app.client.ListManaged(ctx)
	if err != nil {
		return err
	}
	for _, ctr := range managed {
		if stale := isStale(ctx, app.client, ctr); !stale {
			continue
		}
		if doctorFix {
			if err := app.client.RemoveContainer(ctx, ctr.ID); err != nil {
				return err
			}
			fmt.Printf("%s removed stale container %s\n", ok("✓"), ctr.Name)
		} else {
			fmt.Printf("%s stale container %s (run with --fix to remove)\n", warn("!"), ctr.Name)
			problems++
		}
	}

	if problems > 0 {
		fmt.Fprintf(os.Stderr, "\n%d problem(s) found\n", problems)
		return fmt.Errorf("%d problem(s) found", problems)
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func isStale(ctx context.Context, client *docker.Client, ctr docker.Container) bool {
	health, err := client.HealthStatus(ctx, ctr.Name)
	if err != nil {
		return false
	}
	return health == docker.HealthStopped
}
