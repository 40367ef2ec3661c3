// Package main is the entry point for the waterbill service and CLI.
package main

import (
	"os"

	"waterbill/cmd/waterbill/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
