package main

import (
	"os"

	"github.com/bnema/continuity/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
