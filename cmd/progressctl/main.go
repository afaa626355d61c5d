// Command progressctl inspects and adjusts user progression from the shell,
// against the same store the bot uses.
package main

import (
	"os"

	"github.com/fardannozami/stepquest/cmd/progressctl/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
