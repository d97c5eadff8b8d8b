package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"snipd/internal/journal"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		journalPath string
		since       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the expansion journal",
		Long: `Summarize expansions per abbreviation and hook restarts per reason from the
journal the daemon keeps. Snippet text is never stored in the journal.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if journalPath == "" {
				cfg, _, err := loadConfig(rootOpts.ConfigPath, false)
				if err != nil {
					return WrapExitError(ExitCommandError, "load config", err)
				}
				journalPath = cfg.Journal.Path
			}
			return runStats(rootOpts, journalPath, since, cmd)
		},
	}
	cmd.Flags().StringVar(&journalPath, "journal", "", "journal database (default: from config)")
	cmd.Flags().DurationVar(&since, "since", 0, "only include records newer than this, e.g. 24h")
	return cmd
}

func runStats(opts *RootOptions, path string, since time.Duration, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	j, err := journal.Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return WrapExitError(ExitCommandError, "open journal", err)
	}
	defer j.Close()

	var from time.Time
	if since > 0 {
		from = time.Now().Add(-since)
	}
	summary, err := j.Summary(from)
	if err != nil {
		return WrapExitError(ExitCommandError, "summarize journal", err)
	}
	f.VerboseLog("journal %s", path)

	return f.Emit(summary, func(w io.Writer) { printSummary(w, summary) })
}

func printSummary(w io.Writer, s *journal.Summary) {
	fmt.Fprintf(w, "Expansions: %d (%d failed)\n", s.Expansions, s.Failures)
	if len(s.Abbreviations) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ABBREVIATION\tCOUNT\tFAILED\tLAST USED")
		for _, a := range s.Abbreviations {
			last := "-"
			if a.LastUsed > 0 {
				last = time.Unix(0, a.LastUsed).Format(time.DateTime)
			}
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", a.Abbreviation, a.Count, a.Failures, last)
		}
		tw.Flush()
	}

	if len(s.Restarts) > 0 {
		reasons := make([]string, 0, len(s.Restarts))
		for r := range s.Restarts {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Hook restarts:")
		for _, r := range reasons {
			fmt.Fprintf(w, "  %-8s %d\n", r, s.Restarts[r])
		}
	}
}
