package main

import (
	"os"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
