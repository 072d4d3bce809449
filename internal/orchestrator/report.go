package orchestrator

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/aipm-toolkit/aipmctl/internal/docker"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow)
	faint  = color.New(color.Faint)
)

// PrintSummary writes the categorized end-of-run block: access URLs for
// everything that came up, a log-inspection hint for everything that did
// not.
func PrintSummary(w io.Writer, s *Summary) {
	fmt.Fprintln(w)

	if len(s.Ready) > 0 {
		green.Fprintln(w, "Ready:")
		for _, r := range s.Ready {
			fmt.Fprintf(w, "  %-10s %s", r.Service.Name, r.URL)
			if r.Attempts > 1 {
				faint.Fprintf(w, "  (attempt %d)", r.Attempts)
			}
			fmt.Fprintln(w)
		}
	}

	if len(s.Skipped) > 0 {
		yellow.Fprintln(w, "Skipped:")
		for _, r := range s.Skipped {
			fmt.Fprintf(w, "  %-10s image %s not present locally\n", r.Service.Name, r.Service.Image)
		}
	}

	if len(s.Failed) > 0 {
		red.Fprintln(w, "Failed:")
		for _, r := range s.Failed {
			fmt.Fprintf(w, "  %-10s %v\n", r.Service.Name, r.Err)
			faint.Fprintf(w, "             inspect with: aipmctl logs %s\n", r.Service.Name)
		}
	}

	if len(s.Ready) == 0 && len(s.Failed) == 0 && len(s.Skipped) == 0 {
		fmt.Fprintln(w, "Nothing to do.")
	}
}

// PrintStatus writes the read-only fleet report as a table.
func PrintStatus(w io.Writer, report *StatusReport) {
	if report.NetworkPresent {
		fmt.Fprintf(w, "Network %s: present\n\n", report.NetworkName)
	} else {
		fmt.Fprintf(w, "Network %s: absent\n\n", report.NetworkName)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tTIER\tPORT\tCONTAINER\tHEALTH")
	for _, entry := range report.Services {
		container := "-"
		if entry.ContainerPresent {
			container = "present"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			entry.Service.Name, entry.Service.Tier, entry.Service.Port,
			container, colorHealth(entry.Health))
	}
	tw.Flush()
}

func colorHealth(h docker.Health) string {
	switch h {
	case docker.HealthHealthy, docker.HealthRunning:
		return green.Sprint(string(h))
	case docker.HealthUnhealthy:
		return red.Sprint(string(h))
	case docker.HealthStarting:
		return yellow.Sprint(string(h))
	default:
		return faint.Sprint(string(h))
	}
}
