// Package main is the entry point for the device registry API server.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/stacklok/device-registry-server/cmd/device-registry-api/app"
)

func main() {
	_ = godotenv.Load()

	// stderr keeps stdout free for lookup and version output
	setupLogging(os.Stderr, loggingEnv())

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
