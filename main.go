package main

import (
	"os"

	"github.com/sldctools/backdown/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
