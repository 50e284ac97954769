// Package main is the entry point for the scrybot Telegram bot.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Stderr, os.Args[1:]))
}

// run executes the root command and reports failures on stderr; cobra's
// own error printing is silenced, so this is the only place they surface.
func run(stderr io.Writer, args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
