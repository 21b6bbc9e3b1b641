package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"coursechat/cmd"
)

func main() {
	// A missing .env is fine; config falls back to the environment.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
