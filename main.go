package main

import (
	"os"

	"github.com/mingkeli/devagent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
