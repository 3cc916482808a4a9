// Command pagechain runs paging scenarios, replays recorded journal
// sessions and validates engine configuration.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/pagechain/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pagechain:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
