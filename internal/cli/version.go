package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X snipd/internal/cli.Version=...".
var (
	Version = "dev"
	Commit  = ""
)

// VersionInfo is the output of the version command.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Go      string `json:"go"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := VersionInfo{
				Version: Version,
				Commit:  Commit,
				Go:      runtime.Version(),
				OS:      runtime.GOOS,
				Arch:    runtime.GOARCH,
			}
			return newFormatter(rootOpts, cmd).Emit(info, func(w io.Writer) {
				fmt.Fprintf(w, "snipd %s", info.Version)
				if info.Commit != "" {
					fmt.Fprintf(w, " (%s)", info.Commit)
				}
				fmt.Fprintf(w, " %s %s/%s\n", info.Go, info.OS, info.Arch)
			})
		},
	}
}
