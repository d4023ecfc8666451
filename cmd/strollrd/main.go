package main

import (
	"github.com/joho/godotenv"

	"github.com/strollr-labs/strollr/internal/cli"
)

func main() {
	// A .env in the working directory supplies local-dev overrides; absence
	// is normal in production.
	_ = godotenv.Load()

	cli.Execute()
}
