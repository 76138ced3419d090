package main

import (
	"os"

	"github.com/fathima-sithara/dm-client/internal/command"
)

func main() {
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
