// Package main is the entry point for the costengine CLI.
package main

import (
	"os"

	"github.com/bllfield/intelliwatt-costengine/cmd/costengine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
