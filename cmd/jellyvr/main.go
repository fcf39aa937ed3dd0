// Package main is the entry point for the jellyvr application.
package main

import (
	"os"

	"github.com/jmylchreest/jellyvr/cmd/jellyvr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
