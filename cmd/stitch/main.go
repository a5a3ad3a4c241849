package main

import (
	"os"

	"github.com/ankitiscracked/stitch/cmd/stitch/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
