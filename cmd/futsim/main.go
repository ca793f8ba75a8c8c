package main

import (
	"os"

	"github.com/willyhc/futsim/cmd/futsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
