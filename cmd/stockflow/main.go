// Package main provides the stockflow CLI.
package main

import (
	"os"

	"github.com/driftlab/stockflow/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
