// Command kbengine is the entry point for the knowledge retrieval engine.
// It provides a CLI interface (via Cobra) and an HTTP server that fronts
// the engine for the call platform's other services.
package main

import (
	"fmt"
	"os"

	"github.com/callvox/kbengine/cmd/kbengine/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
