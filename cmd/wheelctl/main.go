package main

import (
	"os"

	"github.com/verdantmarket/spinwheel/cmd/wheelctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
