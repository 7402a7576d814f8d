package main

import (
	"os"

	"github.com/temirov/pageaudit/cmd/cli"
)

// main executes the pageaudit command-line application.
func main() {
	os.Exit(cli.ExecuteWithExitCode())
}
