package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/perfsmith/internal/report"
	"github.com/roach88/perfsmith/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Journal string
	Target  string
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render finished sessions from a journal",
		Long: `Render per-target summaries of finished optimization sessions.

Reads the SQLite journal an optimize run wrote with --journal and prints
each target's terminal state, candidate fates, ranked verdicts, and
scenario runtimes.

Example:
  perfsmith report --journal session.db
  perfsmith report --journal session.db --target cart.Total --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (required)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "only render this target function")
	_ = cmd.MarkFlagRequired("journal")

	return cmd
}

func runReport(cmd *cobra.Command, opts *ReportOptions) error {
	// Opening would create an empty database; a missing journal is a
	// command error, not an empty report.
	if _, err := os.Stat(opts.Journal); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	st, err := store.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	reports, err := st.Reports(cmd.Context(), opts.Target)
	if err != nil {
		return WrapExitError(ExitCommandError, "read journal", err)
	}
	if len(reports) == 0 {
		if opts.Target != "" {
			return NewExitError(ExitCommandError, fmt.Sprintf("no reports for target %q", opts.Target))
		}
		return NewExitError(ExitCommandError, "journal holds no reports")
	}

	rendered := make([]report.Target, 0, len(reports))
	for _, rep := range reports {
		rendered = append(rendered, report.Target{TargetReport: rep})
	}

	if err := report.Render(cmd.OutOrStdout(), rendered, opts.Format); err != nil {
		return WrapExitError(ExitCommandError, "render report", err)
	}
	return nil
}
