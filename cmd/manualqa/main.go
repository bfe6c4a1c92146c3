// Command manualqa indexes technical service manuals into a Qdrant vector
// store and answers questions about them with page-level citations. It
// provides a CLI interface (via Cobra) and an HTTP server for API use.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/manualqa-go/cmd/manualqa/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
