package main

import (
	"os"

	"timesheets/internal/platform/config"
)

func main() {
	if err := SetupCommands(config.Load()).Execute(); err != nil {
		os.Exit(1)
	}
}
