package main

import (
	"os"

	"github.com/MEKXH/reviewdesk/cmd/reviewdesk/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
