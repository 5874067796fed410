// The main package for the paperfind executable.
package main

import (
	"os"

	"github.com/nkhosla/paperfind/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	os.Exit(cmd.Execute())
}
