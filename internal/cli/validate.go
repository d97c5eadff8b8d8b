package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"snipd/internal/index"
	"snipd/internal/snippets"
)

// ValidationReport describes a snippet file.
type ValidationReport struct {
	File        string            `json:"file"`
	Valid       bool              `json:"valid"`
	SchemaError string            `json:"schema_error,omitempty"`
	ParseError  string            `json:"parse_error,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
	Snippets    int               `json:"snippets"`
	Sequences   int               `json:"sequences"`
	Skipped     []index.Skipped   `json:"skipped,omitempty"`
	Collisions  []index.Collision `json:"collisions,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var printSchema bool

	cmd := &cobra.Command{
		Use:   "validate [snippets-file]",
		Short: "Check a snippet file",
		Long: `Check a JSON or YAML snippet file against the snippet schema, then load it
the way the daemon does and report skipped entries, abbreviations with no
scan-code mapping and sequences shared by more than one snippet.

With --schema, print the embedded JSON Schema instead.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printSchema {
				_, err := cmd.OutOrStdout().Write(snippets.Schema())
				return err
			}
			if len(args) == 0 {
				return NewExitError(ExitCommandError, "validate needs a snippets file (or --schema)")
			}
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	cmd.Flags().BoolVar(&printSchema, "schema", false, "print the snippet JSON Schema")
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "read snippets file", err)
	}
	report := buildReport(path, data, f)

	if !report.Valid {
		return f.Fail(ExitFailure, "snippet file is invalid", report, func(w io.Writer) {
			printReport(w, report)
		})
	}
	return f.Emit(report, func(w io.Writer) { printReport(w, report) })
}

func buildReport(path string, data []byte, f *OutputFormatter) *ValidationReport {
	format := snippets.FormatFromPath(path)
	report := &ValidationReport{File: path, Valid: true}

	f.VerboseLog("validating %s as %s", path, format)
	if err := snippets.Validate(data, format); err != nil {
		report.Valid = false
		report.SchemaError = err.Error()
	}

	doc, err := snippets.Parse(data, format)
	if err != nil {
		report.Valid = false
		report.ParseError = err.Error()
		return report
	}
	report.Warnings = doc.Warnings

	resolved := doc.Flatten()
	f.VerboseLog("%d enabled snippets after inheritance", len(resolved))

	ix := index.Build(resolved, slog.New(slog.NewTextHandler(io.Discard, nil)))
	report.Snippets = ix.Len()
	report.Sequences = ix.Sequences()
	report.Skipped = ix.Skipped()
	report.Collisions = ix.Collisions()
	return report
}

func printReport(w io.Writer, r *ValidationReport) {
	status := "OK"
	if !r.Valid {
		status = "INVALID"
	}
	fmt.Fprintf(w, "%s: %s\n", r.File, status)
	if r.SchemaError != "" {
		fmt.Fprintf(w, "  schema: %s\n", r.SchemaError)
	}
	if r.ParseError != "" {
		fmt.Fprintf(w, "  parse: %s\n", r.ParseError)
		return
	}
	fmt.Fprintf(w, "  %d snippets, %d sequences\n", r.Snippets, r.Sequences)
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "  skipped %s: no key for %q\n", s.Abbreviation, s.Missing)
	}
	for _, c := range r.Collisions {
		fmt.Fprintf(w, "  collision %s: %v\n", c.Sequence, c.Abbreviations)
	}
}
