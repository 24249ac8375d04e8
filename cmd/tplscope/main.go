// Command tplscope runs instrumentation scenarios, delivers their batches to
// configured sinks and inspects what was delivered.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tplscope/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
