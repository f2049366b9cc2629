package main

import (
	"os"

	"github.com/joho/godotenv"

	"docchat/internal/cli"
)

func main() {
	// .env is optional; API keys may come from the environment directly.
	godotenv.Load()

	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
