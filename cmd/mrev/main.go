// Package main is the entry point for the mrev CLI.
//
// This file is intentionally minimal - all logic lives in the commands
// package. The main function only initializes and executes the root
// command.
package main

import (
	"fmt"
	"os"

	"github.com/kadvik/mrev/cmd/mrev/commands"
)

func main() {
	// Errors are silenced inside Cobra, so they are printed exactly
	// once, here.
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
