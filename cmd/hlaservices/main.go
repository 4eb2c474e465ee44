// Command hlaservices checks that a federate under test invokes the HLA
// services it declares.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/hlaservices/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
