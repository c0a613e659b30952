package main

import (
	"github.com/joho/godotenv"

	"github.com/teemow/slotwise/cmd"
)

// version will be set by goreleaser during build
var version = "dev"

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	// Set the version from build-time variable
	cmd.SetVersion(version)

	// Execute the root command
	cmd.Execute()
}
