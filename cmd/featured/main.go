// Command featured rotates the artist of the day.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/featured/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
