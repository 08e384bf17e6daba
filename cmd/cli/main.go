package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/eresh-mittal/ImageProc/cmd/cli/commands"
)

func main() {
	// Load .env so IMAGEPROC_SERVER_ADDRESS can be set there
	_ = godotenv.Load()

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
