package main

import (
	"github.com/joho/godotenv"

	"ctxrank/internal/cli"
)

func main() {
	// Load .env file if present (for embedding API keys)
	_ = godotenv.Load()

	cli.Execute()
}
