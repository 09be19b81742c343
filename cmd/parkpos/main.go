package main

import (
	"os"

	"github.com/parkline/parkpos/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
