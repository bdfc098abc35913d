// Package main is the entry point for the demix CLI.
//
// Usage:
//
//	demix [flags] <command> [args]
//
// Commands:
//
//	split    - Separate a track into instrument stems
//	analyze  - Estimate tempo and musical key
//	models   - List available separation models
//	config   - Configuration management
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/demixkit/demix/cmd/demix/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
