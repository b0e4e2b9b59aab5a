// Package main is the entry point for the iftactl CLI.
package main

import (
	"os"

	"github.com/ukydev/fleet-ifta/cmd/iftactl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
