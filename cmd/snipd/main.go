// snipd - keyboard text expander
//
//	snipd run                 Run the expansion daemon
//	snipd validate <file>     Check a snippet file
//	snipd translate <abbr>    Show the key sequences of an abbreviation
//	snipd stats               Summarize the expansion journal
//	snipd version             Print version information
package main

import (
	"fmt"
	"os"

	"snipd/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
