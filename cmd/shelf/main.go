// Command shelf stores images and verses in an embedded database.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/shelf/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "shelf:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
