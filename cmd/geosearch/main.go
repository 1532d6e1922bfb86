// Package main provides the entry point for the geosearch CLI.
package main

import (
	"os"

	"github.com/raghaviCJanaswamy/GEOSearch/cmd/geosearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
