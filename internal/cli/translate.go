package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"snipd/internal/scancode"
)

// TranslateResult is the translation of one abbreviation.
type TranslateResult struct {
	Abbreviation string   `json:"abbreviation"`
	Layouts      []string `json:"layouts"`
	Sequences    []string `json:"sequences"`
	Missing      string   `json:"missing,omitempty"`
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "translate <abbreviation>...",
		Short: "Show the scan-code sequences an abbreviation matches",
		Long: `Show the physical key sequences that trigger each abbreviation, one per
keyboard layout that can type it, and the characters no layout maps.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(rootOpts, args, cmd)
		},
	}
}

func translateAll(abbrs []string) ([]TranslateResult, bool) {
	results := make([]TranslateResult, 0, len(abbrs))
	allOK := true
	for _, abbr := range abbrs {
		tr := scancode.Translate(abbr)
		r := TranslateResult{
			Abbreviation: abbr,
			Sequences:    []string{},
			Missing:      tr.MissingString(),
		}
		for _, l := range scancode.Layouts(abbr) {
			r.Layouts = append(r.Layouts, string(l))
		}
		for _, seq := range tr.Sequences {
			r.Sequences = append(r.Sequences, seq.String())
		}
		if !tr.OK() {
			allOK = false
		}
		results = append(results, r)
	}
	return results, allOK
}

func runTranslate(opts *RootOptions, abbrs []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	results, ok := translateAll(abbrs)

	text := func(w io.Writer) {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ABBREVIATION\tLAYOUTS\tSEQUENCES\tMISSING")
		for _, r := range results {
			seqs := "-"
			if len(r.Sequences) > 0 {
				seqs = fmt.Sprint(r.Sequences)
			}
			fmt.Fprintf(tw, "%s\t%v\t%s\t%s\n", r.Abbreviation, r.Layouts, seqs, r.Missing)
		}
		tw.Flush()
	}
	if !ok {
		return f.Fail(ExitFailure, "some abbreviations cannot be typed", results, text)
	}
	return f.Emit(results, text)
}
