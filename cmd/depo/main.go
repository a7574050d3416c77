// Command depo mirrors Perforce depot paths into bare git repositories and
// republishes them to a review host.
package main

import (
	"fmt"
	"os"

	"github.com/Iron-Ham/depo/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cmd.ErrorMessage(err))
		os.Exit(cmd.ExitCode(err))
	}
}
