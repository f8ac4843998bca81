package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/oshokin/runtime-bootstrap/internal/service/installer"
)

// statusCmd reports whether the runtime is installed without changing anything.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the runtime is installed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		report, err := installer.Status(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		return printReport(cmd.OutOrStdout(), report)
	},
}

func printReport(w io.Writer, report *installer.Report) error {
	if _, err := fmt.Fprintf(w, "target: %s\nstate: %s\n", report.Target, report.State); err != nil {
		return err
	}

	record := report.Record
	if record == nil {
		return nil
	}

	_, err := fmt.Fprintf(w, "installed: %s (%s)\nversion: %s\nsource: %s\ndependency exit code: %d\n",
		record.InstalledAt.Format(time.RFC3339), humanize.Time(record.InstalledAt),
		record.Version, record.Source, record.DependencyExitCode)

	return err
}
