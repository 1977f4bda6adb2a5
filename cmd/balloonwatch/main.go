// Package main is the entry point for the balloonwatch CLI.
package main

import (
	"os"

	"github.com/soopfest/balloonwatch/cmd/balloonwatch/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
