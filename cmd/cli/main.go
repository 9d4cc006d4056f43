// Package main is the entry point for shiftctl.
// shiftctl is the developer terminal tool for interacting with the shiftplane API.
package main

import (
	"os"

	"shiftplane/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
